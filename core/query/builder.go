package query

import (
	"fmt"
	"strings"
	"time"
)

// ViewBuilder provides a fluent API for building ViewState values. It starts
// from page 1 with DefaultPageSize and no sort, filters or grouping.
type ViewBuilder struct {
	state ViewState
}

// NewViewBuilder creates a new builder.
func NewViewBuilder() *ViewBuilder {
	return &ViewBuilder{
		state: ViewState{GroupMode: GroupModeNone, Page: 1, PageSize: DefaultPageSize},
	}
}

// From creates a builder seeded with an existing state.
func From(state ViewState) *ViewBuilder {
	state.Filters = cloneFilters(state.Filters)
	return &ViewBuilder{state: state}
}

// Build returns the constructed ViewState.
func (vb *ViewBuilder) Build() ViewState {
	out := vb.state
	out.Filters = cloneFilters(vb.state.Filters)
	return out
}

// Clone returns an independent copy of the builder.
func (vb *ViewBuilder) Clone() *ViewBuilder {
	return From(vb.state)
}

// Reset returns the builder to its initial state.
func (vb *ViewBuilder) Reset() *ViewBuilder {
	vb.state = NewViewBuilder().state
	return vb
}

// Search adds a case-insensitive text search over fields.
func (vb *ViewBuilder) Search(term string, fields ...string) *ViewBuilder {
	return vb.add(Predicate{Search: &TextSearch{Term: term, Fields: fields}})
}

// Where begins a condition on field.
func (vb *ViewBuilder) Where(field string) *ConditionBuilder {
	return &ConditionBuilder{parent: vb, field: field}
}

// OrderBy sets the sort.
func (vb *ViewBuilder) OrderBy(field string, direction SortDirection) *ViewBuilder {
	vb.state.Sort = SortSpec{Field: field, Direction: direction}
	return vb
}

// OrderByAsc sorts ascending by field.
func (vb *ViewBuilder) OrderByAsc(field string) *ViewBuilder {
	return vb.OrderBy(field, SortDirectionAsc)
}

// OrderByDesc sorts descending by field.
func (vb *ViewBuilder) OrderByDesc(field string) *ViewBuilder {
	return vb.OrderBy(field, SortDirectionDesc)
}

// GroupBy sets the group mode.
func (vb *ViewBuilder) GroupBy(mode GroupMode) *ViewBuilder {
	vb.state.GroupMode = mode
	return vb
}

// Page sets the requested page number.
func (vb *ViewBuilder) Page(page int) *ViewBuilder {
	vb.state.Page = page
	return vb
}

// PageSize sets the page size.
func (vb *ViewBuilder) PageSize(size int) *ViewBuilder {
	vb.state.PageSize = size
	return vb
}

func (vb *ViewBuilder) add(p Predicate) *ViewBuilder {
	vb.state.Filters = append(vb.state.Filters, p)
	return vb
}

// ConditionBuilder builds a single predicate on one field.
type ConditionBuilder struct {
	parent *ViewBuilder
	field  string
}

// In restricts the field to the given values. No values means no restriction.
func (cb *ConditionBuilder) In(values ...string) *ViewBuilder {
	return cb.parent.add(Predicate{In: &CategoricalIn{Field: cb.field, Values: values}})
}

// Within restricts a timestamp field to a relative preset.
func (cb *ConditionBuilder) Within(preset RelativePreset) *ViewBuilder {
	return cb.parent.add(Predicate{Date: &DateRange{Field: cb.field, Preset: preset}})
}

// Between restricts a timestamp field to the inclusive calendar dates
// start..end (YYYY-MM-DD).
func (cb *ConditionBuilder) Between(start, end string) *ViewBuilder {
	return cb.parent.add(Predicate{Date: &DateRange{Field: cb.field, Start: start, End: end}})
}

// Since restricts a timestamp field to start and later.
func (cb *ConditionBuilder) Since(start string) *ViewBuilder {
	return cb.Between(start, "")
}

// Until restricts a timestamp field to end and earlier.
func (cb *ConditionBuilder) Until(end string) *ViewBuilder {
	return cb.Between("", end)
}

// ViewValidationError represents a problem found while validating a state.
type ViewValidationError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (ve ViewValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", ve.Field, ve.Message)
}

// ViewValidationResult contains the results of a validation.
type ViewValidationResult struct {
	Valid  bool
	Errors []ViewValidationError
}

// Validate checks the built state for structural problems that do not depend
// on a record type: page bounds, directions, modes, presets and dates.
func (vb *ViewBuilder) Validate() ViewValidationResult {
	var errs []ViewValidationError
	s := vb.state

	if s.PageSize <= 0 {
		errs = append(errs, ViewValidationError{Field: "pageSize", Message: "must be positive"})
	}
	if s.Page < 1 {
		errs = append(errs, ViewValidationError{Field: "page", Message: "must be at least 1"})
	}
	if !s.Sort.Direction.IsValid() {
		errs = append(errs, ViewValidationError{Field: "sort.direction", Message: fmt.Sprintf("unsupported direction '%s'", s.Sort.Direction)})
	}
	if !s.GroupMode.IsValid() {
		errs = append(errs, ViewValidationError{Field: "groupMode", Message: fmt.Sprintf("unsupported mode '%s'", s.GroupMode)})
	}

	for i, p := range s.Filters {
		path := fmt.Sprintf("filters[%d]", i)
		count := 0
		if p.Search != nil {
			count++
		}
		if p.In != nil {
			count++
			if p.In.Field == "" {
				errs = append(errs, ViewValidationError{Field: path, Message: "categorical filter requires a field"})
			}
		}
		if p.Date != nil {
			count++
			errs = append(errs, validateDateRange(path, *p.Date)...)
		}
		if count != 1 {
			errs = append(errs, ViewValidationError{Field: path, Message: "predicate must hold exactly one condition"})
		}
	}

	return ViewValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateDateRange(path string, d DateRange) []ViewValidationError {
	var errs []ViewValidationError
	if d.Field == "" {
		errs = append(errs, ViewValidationError{Field: path, Message: "date filter requires a field"})
	}
	if d.Preset != "" && !d.Preset.IsValid() {
		errs = append(errs, ViewValidationError{Field: path, Message: fmt.Sprintf("unsupported preset '%s'", d.Preset)})
	}
	for _, date := range []string{d.Start, d.End} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, date); err != nil {
			errs = append(errs, ViewValidationError{Field: path, Message: fmt.Sprintf("invalid date '%s'", date)})
		}
	}
	return errs
}

// String returns a human-readable representation of the built state.
func (vb *ViewBuilder) String() string {
	var sb strings.Builder
	s := vb.state

	sb.WriteString("ViewState {\n")
	if len(s.Filters) > 0 {
		sb.WriteString("  Filters:\n")
		for _, p := range s.Filters {
			switch {
			case p.Search != nil:
				sb.WriteString(fmt.Sprintf("    search %q in %v\n", p.Search.Term, p.Search.Fields))
			case p.In != nil:
				sb.WriteString(fmt.Sprintf("    %s in %v\n", p.In.Field, p.In.Values))
			case p.Date != nil && p.Date.Preset != "":
				sb.WriteString(fmt.Sprintf("    %s within %s\n", p.Date.Field, p.Date.Preset))
			case p.Date != nil:
				sb.WriteString(fmt.Sprintf("    %s between %q and %q\n", p.Date.Field, p.Date.Start, p.Date.End))
			}
		}
	}
	if s.Sort.Field != "" {
		sb.WriteString(fmt.Sprintf("  Sort: %s %s\n", s.Sort.Field, s.Sort.Direction))
	}
	sb.WriteString(fmt.Sprintf("  Group: %s\n", s.GroupMode))
	sb.WriteString(fmt.Sprintf("  Page: %d (size %d)\n", s.Page, s.PageSize))
	sb.WriteString("}")
	return sb.String()
}
