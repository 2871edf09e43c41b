package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-tabula/core/schema"
	"go.uber.org/zap"
)

// ProcessorOptions configures a ViewProcessor.
type ProcessorOptions struct {
	// Strict fails fast on references to undefined fields. Enable it in
	// development; production views degrade to empty values instead.
	Strict bool

	// Clock supplies the reference instant for relative date presets.
	Clock func() time.Time

	// Location is the calendar used for absolute date ranges.
	Location *time.Location

	// Grouping enables the exact and pattern group modes.
	Grouping *GroupConfig

	// Summary lists the metrics totalled over the filtered collection.
	Summary []Metric

	Logger *zap.Logger
}

// DefaultProcessorOptions returns lenient, UTC, wall-clock options with no
// grouping and no summary metrics.
func DefaultProcessorOptions() *ProcessorOptions {
	return &ProcessorOptions{
		Clock:    time.Now,
		Location: time.UTC,
		Logger:   zap.NewNop(),
	}
}

// Option mutates ProcessorOptions.
type Option func(*ProcessorOptions)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *ProcessorOptions) { o.Logger = logger }
}

// WithStrict toggles fail-fast handling of unknown fields.
func WithStrict(strict bool) Option {
	return func(o *ProcessorOptions) { o.Strict = strict }
}

// WithClock sets the clock used by relative date presets.
func WithClock(clock func() time.Time) Option {
	return func(o *ProcessorOptions) { o.Clock = clock }
}

// WithLocation sets the calendar for absolute date ranges.
func WithLocation(loc *time.Location) Option {
	return func(o *ProcessorOptions) { o.Location = loc }
}

// WithGrouping enables grouped views.
func WithGrouping(cfg GroupConfig) Option {
	return func(o *ProcessorOptions) {
		c := cfg.withDefaults()
		o.Grouping = &c
	}
}

// WithSummary sets the metrics totalled for KPI displays.
func WithSummary(metrics ...Metric) Option {
	return func(o *ProcessorOptions) { o.Summary = metrics }
}

// ViewProcessor evaluates a ViewState over a record collection with the fixed
// pipeline filter → group → sort → paginate. It keeps no state between calls
// and only reads its configuration, so one processor can serve concurrent
// callers.
type ViewProcessor[T any] struct {
	fields  *schema.FieldSet[T]
	options ProcessorOptions
	logger  *zap.Logger
}

// NewViewProcessor creates a processor for the record type described by
// fields. Grouping and summary metrics must reference defined fields; a
// mismatch is a programming error and is reported immediately.
func NewViewProcessor[T any](fields *schema.FieldSet[T], opts ...Option) (*ViewProcessor[T], error) {
	if fields == nil {
		return nil, fmt.Errorf("%w: field set is required", schema.ErrInvalidFieldSet)
	}

	options := DefaultProcessorOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.Location == nil {
		options.Location = time.UTC
	}

	var missing []error
	for _, metric := range options.Summary {
		if !fields.Has(metric.Field) {
			missing = append(missing, fmt.Errorf("summary metric '%s' field '%s': %w", metric.Name, metric.Field, ErrUnknownField))
		}
	}
	if g := options.Grouping; g != nil {
		for _, key := range []string{g.KeyField, g.TagField} {
			if key != "" && !fields.Has(key) {
				missing = append(missing, fmt.Errorf("grouping field '%s': %w", key, ErrUnknownField))
			}
		}
		for _, metric := range g.Metrics {
			if !fields.Has(metric.Field) {
				missing = append(missing, fmt.Errorf("group metric '%s' field '%s': %w", metric.Name, metric.Field, ErrUnknownField))
			}
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	return &ViewProcessor[T]{
		fields:  fields,
		options: *options,
		logger:  options.Logger,
	}, nil
}

// Fields returns the field set the processor reads records through.
func (p *ViewProcessor[T]) Fields() *schema.FieldSet[T] {
	return p.fields
}

// Grouping returns the grouping configuration, or nil when grouping is off.
func (p *ViewProcessor[T]) Grouping() *GroupConfig {
	return p.options.Grouping
}

// engineOptions captures the ambient inputs for one evaluation. The clock is
// read once so every predicate sees the same instant.
func (p *ViewProcessor[T]) engineOptions() EngineOptions {
	return EngineOptions{
		Strict:   p.options.Strict,
		Now:      p.options.Clock(),
		Location: p.options.Location,
		Logger:   p.logger,
	}
}

// Normalize validates state and fills defaults: a zero page size becomes
// DefaultPageSize and an empty group mode becomes none.
func (p *ViewProcessor[T]) Normalize(state ViewState) (ViewState, error) {
	if state.PageSize == 0 {
		state.PageSize = DefaultPageSize
	}
	if state.PageSize < 0 {
		return state, fmt.Errorf("%w: %d", ErrInvalidPageSize, state.PageSize)
	}
	if state.GroupMode == "" {
		state.GroupMode = GroupModeNone
	}
	if !state.GroupMode.IsValid() {
		return state, fmt.Errorf("%w: '%s'", ErrInvalidGroupMode, state.GroupMode)
	}
	if state.GroupMode.Grouped() && p.options.Grouping == nil {
		return state, fmt.Errorf("%w: view does not support grouping", ErrInvalidGroupMode)
	}
	if !state.Sort.Direction.IsValid() {
		return state, fmt.Errorf("%w: direction '%s'", ErrInvalidSort, state.Sort.Direction)
	}
	return state, nil
}

// Materialize runs filter, group and sort and returns the full, unpaginated
// result in display order.
func (p *ViewProcessor[T]) Materialize(records []T, state ViewState) (*Materialized[T], error) {
	state, err := p.Normalize(state)
	if err != nil {
		return nil, err
	}
	opts := p.engineOptions()

	filtered, err := ApplyFilters(records, state.Filters, p.fields, opts)
	if err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}

	summary, err := Summarize(filtered, p.options.Summary, p.fields, opts)
	if err != nil {
		return nil, fmt.Errorf("summary failed: %w", err)
	}

	out := &Materialized[T]{Mode: state.GroupMode, Summary: summary}

	if !state.GroupMode.Grouped() {
		sorted, err := SortRecords(filtered, state.Sort, p.fields, opts)
		if err != nil {
			return nil, fmt.Errorf("sort failed: %w", err)
		}
		out.Records = sorted
		return out, nil
	}

	grouped, err := GroupRecords(filtered, state.GroupMode, *p.options.Grouping, p.fields, opts)
	if err != nil {
		return nil, fmt.Errorf("grouping failed: %w", err)
	}
	groups, err := SortGroups(grouped.Groups, state.Sort, *p.options.Grouping, opts)
	if err != nil {
		return nil, fmt.Errorf("sort failed: %w", err)
	}
	out.Groups = groups
	out.HiddenGroups = grouped.Hidden
	return out, nil
}

// Recompute evaluates state over records and returns the requested page.
func (p *ViewProcessor[T]) Recompute(records []T, state ViewState) (*Result[T], error) {
	state, err := p.Normalize(state)
	if err != nil {
		return nil, err
	}

	m, err := p.Materialize(records, state)
	if err != nil {
		return nil, err
	}

	result := &Result[T]{
		Mode:         m.Mode,
		Summary:      m.Summary,
		HiddenGroups: m.HiddenGroups,
	}

	if m.Mode.Grouped() {
		page, err := Paginate(m.Groups, state.Page, state.PageSize)
		if err != nil {
			return nil, err
		}
		result.Groups = &page
	} else {
		page, err := Paginate(m.Records, state.Page, state.PageSize)
		if err != nil {
			return nil, err
		}
		result.Records = &page
	}

	p.logger.Debug("View recomputed",
		zap.String("mode", string(m.Mode)),
		zap.Int("filtered", m.Summary.Count),
		zap.Int("page", state.Page),
		zap.Int("pageSize", state.PageSize))
	return result, nil
}
