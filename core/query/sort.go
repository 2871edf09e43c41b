package query

import (
	"fmt"
	"slices"

	"github.com/asaidimu/go-tabula/core/schema"
	"go.uber.org/zap"
)

// keyed pairs an item with its precomputed sort key so accessors run once
// per item instead of once per comparison.
type keyed[E any] struct {
	key  schema.Value
	item E
}

// SortRecords returns a copy of records ordered by spec. The sort is stable:
// records with equal keys keep their input order in both directions. An empty
// spec field leaves the order unchanged. An unknown field fails in strict
// mode and leaves the order unchanged otherwise.
func SortRecords[T any](records []T, spec SortSpec, fields *schema.FieldSet[T], opts EngineOptions) ([]T, error) {
	opts = opts.normalized()
	if !spec.Direction.IsValid() {
		return nil, fmt.Errorf("%w: direction '%s'", ErrInvalidSort, spec.Direction)
	}

	out := slices.Clone(records)
	if spec.Field == "" {
		return out, nil
	}
	if !fields.Has(spec.Field) {
		if opts.Strict {
			return nil, fmt.Errorf("sort field '%s': %w", spec.Field, ErrUnknownField)
		}
		opts.Logger.Warn("Unknown sort field, keeping input order", zap.String("field", spec.Field))
		return out, nil
	}

	return stableSort(out, spec.Direction, func(record T) schema.Value {
		v, _ := fields.Resolve(spec.Field, record)
		return v
	}), nil
}

// SortGroups returns a copy of groups ordered by spec. Groups expose "key",
// "count" and the metric names of cfg as sortable fields. The field is
// checked against cfg, so an empty group list fails the same way a full one
// does.
func SortGroups[T any](groups []Group[T], spec SortSpec, cfg GroupConfig, opts EngineOptions) ([]Group[T], error) {
	opts = opts.normalized()
	if !spec.Direction.IsValid() {
		return nil, fmt.Errorf("%w: direction '%s'", ErrInvalidSort, spec.Direction)
	}

	out := slices.Clone(groups)
	if spec.Field == "" {
		return out, nil
	}
	if !cfg.HasField(spec.Field) {
		if opts.Strict {
			return nil, fmt.Errorf("group sort field '%s': %w", spec.Field, ErrUnknownField)
		}
		opts.Logger.Warn("Sort field is not defined on groups, keeping group order", zap.String("field", spec.Field))
		return out, nil
	}

	return stableSort(out, spec.Direction, func(g Group[T]) schema.Value {
		v, _ := groupValue(g, spec.Field)
		return v
	}), nil
}

func stableSort[E any](items []E, direction SortDirection, key func(E) schema.Value) []E {
	decorated := make([]keyed[E], len(items))
	for i, item := range items {
		decorated[i] = keyed[E]{key: key(item), item: item}
	}

	slices.SortStableFunc(decorated, func(a, b keyed[E]) int {
		c := a.key.Compare(b.key)
		if direction == SortDirectionDesc {
			return -c
		}
		return c
	})

	for i := range decorated {
		items[i] = decorated[i].item
	}
	return items
}

// groupValue resolves a sortable field on a group.
func groupValue[T any](g Group[T], field string) (schema.Value, bool) {
	switch field {
	case GroupFieldKey:
		return schema.String(g.Key), true
	case GroupFieldCount:
		return schema.Number(float64(g.Count)), true
	}
	total, ok := g.Aggregates[field]
	if !ok {
		return schema.Empty(schema.FieldTypeNumber), false
	}
	return schema.Number(total.InexactFloat64()), true
}
