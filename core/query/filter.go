package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/asaidimu/go-tabula/core/schema"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// matcher is a compiled predicate.
type matcher[T any] func(record T) bool

// ApplyFilters returns the records that satisfy every predicate in spec, in
// their original order. The input slice is never modified. Predicates are
// compiled once up front, so malformed input is reported before any record
// is examined.
func ApplyFilters[T any](records []T, spec FilterSpec, fields *schema.FieldSet[T], opts EngineOptions) ([]T, error) {
	opts = opts.normalized()

	matchers := make([]matcher[T], 0, len(spec))
	for i, predicate := range spec {
		m, err := compilePredicate(predicate, fields, opts)
		if err != nil {
			return nil, fmt.Errorf("predicate %d: %w", i, err)
		}
		if m != nil {
			matchers = append(matchers, m)
		}
	}

	filtered := make([]T, 0, len(records))
	for _, record := range records {
		if matchesAll(record, matchers) {
			filtered = append(filtered, record)
		}
	}

	opts.Logger.Debug("Records remaining after filters",
		zap.Int("input", len(records)), zap.Int("output", len(filtered)))
	return filtered, nil
}

func matchesAll[T any](record T, matchers []matcher[T]) bool {
	for _, m := range matchers {
		if !m(record) {
			return false
		}
	}
	return true
}

// compilePredicate turns a predicate into a matcher. A nil matcher with a nil
// error means the predicate places no restriction.
func compilePredicate[T any](p Predicate, fields *schema.FieldSet[T], opts EngineOptions) (matcher[T], error) {
	set := 0
	for _, present := range []bool{p.Search != nil, p.In != nil, p.Date != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: predicate must hold exactly one condition, got %d", ErrInvalidFilter, set)
	}

	switch {
	case p.Search != nil:
		return compileSearch(*p.Search, fields, opts)
	case p.In != nil:
		return compileCategorical(*p.In, fields, opts)
	default:
		return compileDateRange(*p.Date, fields, opts)
	}
}

func compileSearch[T any](s TextSearch, fields *schema.FieldSet[T], opts EngineOptions) (matcher[T], error) {
	term := strings.ToLower(s.Term)
	if term == "" {
		return nil, nil
	}

	keys := s.Fields
	if len(keys) == 0 {
		keys = fields.Keys()
	}
	for _, key := range keys {
		if err := checkField(fields, key, "search", opts); err != nil {
			return nil, err
		}
	}

	return func(record T) bool {
		for _, key := range keys {
			v, _ := fields.Resolve(key, record)
			if strings.Contains(strings.ToLower(v.String()), term) {
				return true
			}
		}
		return false
	}, nil
}

func compileCategorical[T any](c CategoricalIn, fields *schema.FieldSet[T], opts EngineOptions) (matcher[T], error) {
	if len(c.Values) == 0 {
		return nil, nil
	}
	if err := checkField(fields, c.Field, "category", opts); err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(c.Values))
	for _, value := range c.Values {
		allowed[value] = struct{}{}
	}

	return func(record T) bool {
		v, _ := fields.Resolve(c.Field, record)
		_, ok := allowed[v.String()]
		return ok
	}, nil
}

func compileDateRange[T any](d DateRange, fields *schema.FieldSet[T], opts EngineOptions) (matcher[T], error) {
	if d.Preset != "" && !d.Preset.IsValid() {
		return nil, fmt.Errorf("%w: unsupported date preset '%s'", ErrInvalidFilter, d.Preset)
	}
	if d.Preset == PresetAll || (d.Preset == "" && d.Start == "" && d.End == "") {
		return nil, nil
	}
	if err := checkField(fields, d.Field, "date", opts); err != nil {
		return nil, err
	}

	lower, upper, err := dateBounds(d, opts)
	if err != nil {
		return nil, err
	}
	if !lower.IsZero() && !upper.IsZero() && lower.After(upper) {
		return func(T) bool { return false }, nil
	}

	return func(record T) bool {
		v, _ := fields.Resolve(d.Field, record)
		if v.Null || v.Type != schema.FieldTypeTimestamp {
			return false
		}
		if !lower.IsZero() && v.Time.Before(lower) {
			return false
		}
		if !upper.IsZero() && v.Time.After(upper) {
			return false
		}
		return true
	}, nil
}

// dateBounds resolves a range into inclusive instants. A zero time leaves
// that side unbounded.
func dateBounds(d DateRange, opts EngineOptions) (lower, upper time.Time, err error) {
	if window, ok := d.Preset.Window(); ok {
		return opts.Now.Add(-window), time.Time{}, nil
	}

	if d.Start != "" {
		start, err := time.ParseInLocation(dateLayout, d.Start, opts.Location)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start date %q: %v", ErrInvalidFilter, d.Start, err)
		}
		lower = start
	}
	if d.End != "" {
		end, err := time.ParseInLocation(dateLayout, d.End, opts.Location)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end date %q: %v", ErrInvalidFilter, d.End, err)
		}
		upper = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return lower, upper, nil
}
