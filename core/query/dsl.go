// Package query defines the view DSL and the engines that evaluate it over an
// in-memory collection: filtering, grouping, sorting and pagination. A
// ViewState fully describes a view; evaluating the same state over the same
// records always yields the same Result.
package query

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "ascending"
	SortDirectionDesc SortDirection = "descending"
)

// IsValid reports whether d is a known direction. The empty direction is
// accepted and treated as ascending.
func (d SortDirection) IsValid() bool {
	return d == "" || d == SortDirectionAsc || d == SortDirectionDesc
}

// Toggle returns the opposite direction.
func (d SortDirection) Toggle() SortDirection {
	if d == SortDirectionDesc {
		return SortDirectionAsc
	}
	return SortDirectionDesc
}

// RelativePreset is a date window anchored at the moment the filter runs.
type RelativePreset string

// Supported relative presets.
const (
	PresetLastDay   RelativePreset = "1d"
	PresetLastWeek  RelativePreset = "7d"
	PresetLastMonth RelativePreset = "30d"
	PresetAll       RelativePreset = "All"
)

// Window returns the length of the preset. The boolean is false for PresetAll
// and for unknown presets; use IsValid to tell them apart.
func (p RelativePreset) Window() (time.Duration, bool) {
	switch p {
	case PresetLastDay:
		return 24 * time.Hour, true
	case PresetLastWeek:
		return 7 * 24 * time.Hour, true
	case PresetLastMonth:
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// IsValid reports whether p is one of the supported presets.
func (p RelativePreset) IsValid() bool {
	switch p {
	case PresetLastDay, PresetLastWeek, PresetLastMonth, PresetAll:
		return true
	}
	return false
}

// TextSearch matches records where the term is a case-insensitive substring
// of at least one of the listed fields. An empty term matches everything and
// an empty field list searches every registered field.
type TextSearch struct {
	Term   string   `json:"term"`
	Fields []string `json:"fields,omitempty"`
}

// CategoricalIn matches records whose field value is one of Values. An empty
// Values list means no restriction, never "match none".
type CategoricalIn struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// DateRange restricts a timestamp field either to a relative Preset or to an
// absolute, inclusive [Start, End] span of calendar dates (YYYY-MM-DD). End is
// inclusive through the last instant of that day. A Start after End matches
// nothing; an empty Start or End leaves that side open.
type DateRange struct {
	Field  string         `json:"field"`
	Preset RelativePreset `json:"preset,omitempty"`
	Start  string         `json:"start,omitempty"`
	End    string         `json:"end,omitempty"`
}

// Predicate is a union type holding exactly one filter condition.
type Predicate struct {
	Search *TextSearch    `json:"search,omitempty"`
	In     *CategoricalIn `json:"in,omitempty"`
	Date   *DateRange     `json:"date,omitempty"`
}

// FilterSpec is an ordered list of predicates combined with logical AND.
type FilterSpec []Predicate

// SortSpec orders a collection by a single field.
type SortSpec struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// GroupMode selects the grouping strategy of a view.
type GroupMode string

// Supported group modes.
const (
	GroupModeNone    GroupMode = "none"
	GroupModeExact   GroupMode = "exact"
	GroupModePattern GroupMode = "pattern"
)

// IsValid reports whether m is a known mode. The empty mode means none.
func (m GroupMode) IsValid() bool {
	switch m {
	case "", GroupModeNone, GroupModeExact, GroupModePattern:
		return true
	}
	return false
}

// Grouped reports whether m produces groups instead of records.
func (m GroupMode) Grouped() bool {
	return m == GroupModeExact || m == GroupModePattern
}

// PageSizes lists the page sizes offered to users. Paginate accepts any
// positive size.
var PageSizes = []int{10, 20, 50, 100}

// DefaultPageSize is the page size of a freshly mounted view.
const DefaultPageSize = 10

// Field names every Group exposes for sorting, in addition to its metrics.
const (
	GroupFieldKey   = "key"
	GroupFieldCount = "count"
)

// ViewState is the full set of parameters that deterministically produce a
// page. It is a plain value: the With* helpers return modified copies and
// implement the rule that any change other than the page number returns the
// view to page 1.
type ViewState struct {
	Filters   FilterSpec `json:"filters,omitempty"`
	Sort      SortSpec   `json:"sort"`
	GroupMode GroupMode  `json:"groupMode"`
	Page      int        `json:"page"`
	PageSize  int        `json:"pageSize"`
}

// DefaultViewState returns the state of a freshly mounted view sorted by the
// given field in descending order.
func DefaultViewState(sortField string) ViewState {
	return ViewState{
		Sort:      SortSpec{Field: sortField, Direction: SortDirectionDesc},
		GroupMode: GroupModeNone,
		Page:      1,
		PageSize:  DefaultPageSize,
	}
}

// WithFilters replaces the filters and resets to page 1.
func (s ViewState) WithFilters(filters FilterSpec) ViewState {
	s.Filters = cloneFilters(filters)
	s.Page = 1
	return s
}

// WithSort replaces the sort and resets to page 1.
func (s ViewState) WithSort(sort SortSpec) ViewState {
	s.Filters = cloneFilters(s.Filters)
	s.Sort = sort
	s.Page = 1
	return s
}

// WithGroupMode changes the grouping and resets to page 1.
func (s ViewState) WithGroupMode(mode GroupMode) ViewState {
	s.Filters = cloneFilters(s.Filters)
	s.GroupMode = mode
	s.Page = 1
	return s
}

// WithPageSize changes the page size and resets to page 1.
func (s ViewState) WithPageSize(size int) ViewState {
	s.Filters = cloneFilters(s.Filters)
	s.PageSize = size
	s.Page = 1
	return s
}

// WithPage changes only the page number.
func (s ViewState) WithPage(page int) ViewState {
	s.Filters = cloneFilters(s.Filters)
	s.Page = page
	return s
}

// Group aggregates the records that share a grouping key. Count always equals
// len(Members); Aggregates holds exact sums of the configured metrics.
type Group[T any] struct {
	Key        string                     `json:"key"`
	Members    []T                        `json:"members"`
	Count      int                        `json:"count"`
	Aggregates map[string]decimal.Decimal `json:"aggregates"`
}

// Total returns the aggregate for metric, or zero when it was not computed.
func (g Group[T]) Total(metric string) decimal.Decimal {
	return g.Aggregates[metric]
}

// Page is a bounded slice of a computed view. PageNumber is 1-based and
// already clamped; TotalPages is zero when there are no items.
type Page[E any] struct {
	Items      []E `json:"items"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Summary holds metric totals over the whole filtered collection, not just
// the visible page.
type Summary struct {
	Count  int                        `json:"count"`
	Totals map[string]decimal.Decimal `json:"totals"`
}

// Result is the materialized output of a view. Records is populated when the
// view is not grouped, Groups otherwise. HiddenGroups counts the exact-mode
// singleton groups removed for display.
type Result[T any] struct {
	Mode         GroupMode       `json:"mode"`
	Records      *Page[T]        `json:"records,omitempty"`
	Groups       *Page[Group[T]] `json:"groups,omitempty"`
	Summary      Summary         `json:"summary"`
	HiddenGroups int             `json:"hiddenGroups"`
}

// Materialized is the full, unpaginated output of a view, in display order.
// Exports are written from it so they always cover the entire result set.
type Materialized[T any] struct {
	Mode         GroupMode
	Records      []T
	Groups       []Group[T]
	Summary      Summary
	HiddenGroups int
}

func cloneFilters(filters FilterSpec) FilterSpec {
	if filters == nil {
		return nil
	}
	out := make(FilterSpec, len(filters))
	copy(out, filters)
	return out
}
