package api

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/asaidimu/go-tabula/core/query"
	"github.com/asaidimu/go-tabula/core/schema"
	"github.com/asaidimu/go-tabula/dashboard"
)

// ErrInvalidQuery is returned for query parameters that cannot be turned into
// a view state.
var ErrInvalidQuery = errors.New("invalid query parameters")

// Query parameter names.
const (
	ParamSearch    = "q"
	ParamSort      = "sort"
	ParamDirection = "dir"
	ParamGroup     = "group"
	ParamPage      = "page"
	ParamPageSize  = "pageSize"
	ParamRange     = "range"
	ParamFrom      = "from"
	ParamTo        = "to"
	ParamDateField = "dateField"

	// filterPrefix marks categorical filters: filter.<field>=a,b
	filterPrefix = "filter."
)

// ParseState builds the view state for board from URL query values, starting
// from the board's default state. Filters are applied in a fixed order:
// search, categorical filters sorted by field, then the date range.
func ParseState(board dashboard.Board, values url.Values) (query.ViewState, error) {
	state := board.DefaultState()

	var filters query.FilterSpec
	if term := strings.TrimSpace(values.Get(ParamSearch)); term != "" {
		filters = append(filters, query.Predicate{Search: &query.TextSearch{Term: term, Fields: board.SearchFields()}})
	}

	var categorical []string
	for key := range values {
		if strings.HasPrefix(key, filterPrefix) {
			categorical = append(categorical, key)
		}
	}
	slices.Sort(categorical)
	for _, key := range categorical {
		field := strings.TrimPrefix(key, filterPrefix)
		if field == "" {
			return state, fmt.Errorf("%w: empty filter field", ErrInvalidQuery)
		}
		filters = append(filters, query.Predicate{In: &query.CategoricalIn{Field: field, Values: splitList(values[key])}})
	}

	dateRange, err := parseDateRange(board, values)
	if err != nil {
		return state, err
	}
	if dateRange != nil {
		filters = append(filters, query.Predicate{Date: dateRange})
	}
	if len(filters) > 0 {
		state = state.WithFilters(filters)
	}

	if raw := values.Get(ParamGroup); raw != "" {
		mode := query.GroupMode(raw)
		if !mode.IsValid() {
			return state, fmt.Errorf("%w: group mode '%s'", ErrInvalidQuery, raw)
		}
		state = state.WithGroupMode(mode)
		if mode.Grouped() && values.Get(ParamSort) == "" {
			if metric := costMetric(board.Grouping()); metric != "" {
				state = state.WithSort(query.SortSpec{Field: metric, Direction: query.SortDirectionDesc})
			}
		}
	}

	if field := values.Get(ParamSort); field != "" {
		direction, err := parseDirection(values.Get(ParamDirection))
		if err != nil {
			return state, err
		}
		state = state.WithSort(query.SortSpec{Field: field, Direction: direction})
	}

	if raw := values.Get(ParamPageSize); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || !query.IsOfferedPageSize(size) {
			return state, fmt.Errorf("%w: page size '%s', offered sizes are %v", ErrInvalidQuery, raw, query.PageSizes)
		}
		state = state.WithPageSize(size)
	}

	if raw := values.Get(ParamPage); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return state, fmt.Errorf("%w: page '%s'", ErrInvalidQuery, raw)
		}
		state = state.WithPage(page)
	}

	return state, nil
}

func parseDirection(raw string) (query.SortDirection, error) {
	switch strings.ToLower(raw) {
	case "", "asc", string(query.SortDirectionAsc):
		return query.SortDirectionAsc, nil
	case "desc", string(query.SortDirectionDesc):
		return query.SortDirectionDesc, nil
	}
	return "", fmt.Errorf("%w: sort direction '%s'", ErrInvalidQuery, raw)
}

func parseDateRange(board dashboard.Board, values url.Values) (*query.DateRange, error) {
	preset := query.RelativePreset(values.Get(ParamRange))
	from, to := values.Get(ParamFrom), values.Get(ParamTo)
	if (preset == "" || preset == query.PresetAll) && from == "" && to == "" {
		return nil, nil
	}
	if preset != "" && !preset.IsValid() {
		return nil, fmt.Errorf("%w: range '%s'", ErrInvalidQuery, preset)
	}
	if preset == query.PresetAll {
		preset = ""
	}

	field := values.Get(ParamDateField)
	if field == "" {
		field = firstTimestampField(board)
	} else if f, ok := board.Field(field); ok && f.Type != schema.FieldTypeTimestamp {
		return nil, fmt.Errorf("%w: date field '%s' is a %s field", ErrInvalidQuery, field, f.Type)
	}
	if field == "" {
		return nil, fmt.Errorf("%w: view %s has no date field", ErrInvalidQuery, board.Name())
	}

	if preset != "" {
		return &query.DateRange{Field: field, Preset: preset}, nil
	}
	return &query.DateRange{Field: field, Start: from, End: to}, nil
}

func firstTimestampField(board dashboard.Board) string {
	for _, f := range board.Info().Fields {
		if f.Type == schema.FieldTypeTimestamp {
			return f.Key
		}
	}
	return ""
}

func costMetric(g *query.GroupConfig) string {
	if g == nil {
		return ""
	}
	if g.CostMetric != "" {
		return g.CostMetric
	}
	if len(g.Metrics) > 0 {
		return g.Metrics[0].Name
	}
	return ""
}

// splitList flattens repeated and comma separated values, dropping blanks.
func splitList(raw []string) []string {
	out := []string{}
	for _, item := range raw {
		for _, v := range strings.Split(item, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
