package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/asaidimu/go-tabula/core/schema"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultPatternTag is the bucket for records that carry no pattern tag.
const DefaultPatternTag = "Generic"

// DefaultCostMetric is the aggregate that orders groups by default.
const DefaultCostMetric = "totalCost"

// Metric names an aggregate summed from a numeric record field.
type Metric struct {
	Name  string `json:"name"`
	Field string `json:"field"`
}

// GroupConfig describes how a record type is clustered.
type GroupConfig struct {
	// KeyField holds the literal value grouped on in exact mode, typically the
	// normalized query text.
	KeyField string `json:"keyField"`

	// TagField holds the precomputed pattern tag grouped on in pattern mode.
	TagField string `json:"tagField"`

	// DefaultTag receives records whose tag is missing or blank.
	DefaultTag string `json:"defaultTag"`

	// CostMetric names the metric groups are ordered by, descending.
	CostMetric string `json:"costMetric"`

	// Metrics are summed over the members of every group.
	Metrics []Metric `json:"metrics"`
}

func (c GroupConfig) withDefaults() GroupConfig {
	if c.DefaultTag == "" {
		c.DefaultTag = DefaultPatternTag
	}
	if c.CostMetric == "" && len(c.Metrics) > 0 {
		c.CostMetric = c.Metrics[0].Name
	}
	return c
}

// HasField reports whether groups built from c expose field.
func (c GroupConfig) HasField(field string) bool {
	if field == GroupFieldKey || field == GroupFieldCount {
		return true
	}
	return slices.ContainsFunc(c.Metrics, func(m Metric) bool { return m.Name == field })
}

// GroupingResult holds the groups surfaced to the view. Total is the number
// of records grouped, which always equals the sum of counts over all groups
// before the exact-mode singleton reduction. Hidden counts the singleton
// groups removed for display.
type GroupingResult[T any] struct {
	Groups []Group[T]
	Total  int
	Hidden int
}

// GroupRecords clusters records according to mode.
//
// Exact mode keys on the literal KeyField value and, after aggregating the
// whole collection, drops groups of a single record: only repeats are shown.
// Pattern mode keys on TagField and keeps every group. In both modes groups
// are ordered by descending CostMetric, ties keeping first-appearance order.
func GroupRecords[T any](records []T, mode GroupMode, cfg GroupConfig, fields *schema.FieldSet[T], opts EngineOptions) (*GroupingResult[T], error) {
	opts = opts.normalized()
	cfg = cfg.withDefaults()

	var keyOf func(T) string
	switch mode {
	case GroupModeExact:
		if err := checkField(fields, cfg.KeyField, "group key", opts); err != nil {
			return nil, err
		}
		keyOf = func(record T) string {
			v, _ := fields.Resolve(cfg.KeyField, record)
			return v.String()
		}
	case GroupModePattern:
		if err := checkField(fields, cfg.TagField, "group tag", opts); err != nil {
			return nil, err
		}
		keyOf = func(record T) string {
			v, _ := fields.Resolve(cfg.TagField, record)
			tag := strings.TrimSpace(v.String())
			if tag == "" {
				return cfg.DefaultTag
			}
			return tag
		}
	default:
		return nil, fmt.Errorf("%w: cannot group in mode '%s'", ErrInvalidGroupMode, mode)
	}

	for _, metric := range cfg.Metrics {
		if err := checkField(fields, metric.Field, "metric", opts); err != nil {
			return nil, err
		}
	}

	index := make(map[string]int)
	groups := make([]Group[T], 0)
	for _, record := range records {
		key := keyOf(record)
		i, exists := index[key]
		if !exists {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group[T]{
				Key:        key,
				Aggregates: make(map[string]decimal.Decimal, len(cfg.Metrics)),
			})
		}

		g := &groups[i]
		g.Members = append(g.Members, record)
		g.Count++
		for _, metric := range cfg.Metrics {
			v, _ := fields.Resolve(metric.Field, record)
			g.Aggregates[metric.Name] = g.Aggregates[metric.Name].Add(toDecimal(v))
		}
	}

	result := &GroupingResult[T]{Total: len(records)}
	if mode == GroupModeExact {
		repeated := make([]Group[T], 0, len(groups))
		for _, g := range groups {
			if g.Count > 1 {
				repeated = append(repeated, g)
			}
		}
		result.Hidden = len(groups) - len(repeated)
		groups = repeated
	}

	if cfg.CostMetric != "" {
		slices.SortStableFunc(groups, func(a, b Group[T]) int {
			return b.Aggregates[cfg.CostMetric].Cmp(a.Aggregates[cfg.CostMetric])
		})
	}
	result.Groups = groups

	opts.Logger.Debug("Records grouped",
		zap.String("mode", string(mode)),
		zap.Int("records", len(records)),
		zap.Int("groups", len(groups)),
		zap.Int("hidden", result.Hidden))
	return result, nil
}

// Summarize sums metrics over records for KPI displays.
func Summarize[T any](records []T, metrics []Metric, fields *schema.FieldSet[T], opts EngineOptions) (Summary, error) {
	opts = opts.normalized()
	summary := Summary{
		Count:  len(records),
		Totals: make(map[string]decimal.Decimal, len(metrics)),
	}
	for _, metric := range metrics {
		if err := checkField(fields, metric.Field, "summary", opts); err != nil {
			return Summary{}, err
		}
		total := decimal.Zero
		for _, record := range records {
			v, _ := fields.Resolve(metric.Field, record)
			total = total.Add(toDecimal(v))
		}
		summary.Totals[metric.Name] = total
	}
	return summary, nil
}
