// Package view binds a record collection and a ViewState into a stateful
// session, the adapter a list page drives: each user action becomes one
// mutation, and every mutation recomputes the visible page and emits an event.
package view

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-tabula/core/export"
	"github.com/asaidimu/go-tabula/core/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotGrouped is returned when group rows are requested from a session
// showing plain records.
var ErrNotGrouped = errors.New("view is not grouped")

// SessionOptions configures a Session.
type SessionOptions struct {
	// Name identifies the session in events and logs.
	Name string

	// InitialState is the state Reset returns to.
	InitialState query.ViewState

	// SearchFields limits SetSearch to these fields. Empty searches all.
	SearchFields []string

	Logger *zap.Logger
}

// DefaultSessionOptions returns options for an unnamed view with the default
// state and no sort.
func DefaultSessionOptions() *SessionOptions {
	return &SessionOptions{
		Name:         "view",
		InitialState: query.DefaultViewState(""),
		Logger:       zap.NewNop(),
	}
}

// Session owns one ViewState over one record collection. Mutations are
// serialized and each one recomputes the result before returning. A mutation
// that fails to recompute leaves the previous state and result in place.
type Session[T any] struct {
	mu        sync.Mutex
	processor *query.ViewProcessor[T]
	records   []T
	state     query.ViewState
	result    *query.Result[T]
	options   SessionOptions
	logger    *zap.Logger

	bus           *events.TypedEventBus[ViewEvent]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// NewSession creates a session and computes its first page.
func NewSession[T any](processor *query.ViewProcessor[T], records []T, options *SessionOptions) (*Session[T], error) {
	if processor == nil {
		return nil, errors.New("view processor is required")
	}
	if options == nil {
		options = DefaultSessionOptions()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}

	bus, err := events.NewTypedEventBus[ViewEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	initial, err := processor.Normalize(options.InitialState)
	if err != nil {
		return nil, fmt.Errorf("invalid initial state: %w", err)
	}
	options.InitialState = initial

	s := &Session[T]{
		processor:     processor,
		records:       records,
		state:         initial,
		options:       *options,
		logger:        options.Logger.With(zap.String("view", options.Name)),
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}

	result, err := processor.Recompute(records, initial)
	if err != nil {
		return nil, fmt.Errorf("initial recompute failed: %w", err)
	}
	s.result = result
	s.syncPage()
	return s, nil
}

// Name returns the session name.
func (s *Session[T]) Name() string {
	return s.options.Name
}

// Current returns the state and the result computed for it.
func (s *Session[T]) Current() (query.ViewState, *query.Result[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.WithPage(s.state.Page), s.result
}

// SetSearch replaces the free-text search. An empty term removes it.
func (s *Session[T]) SetSearch(term string) error {
	return s.mutate("search", func(state query.ViewState) (query.ViewState, error) {
		filters := removeWhere(state.Filters, func(p query.Predicate) bool { return p.Search != nil })
		if term != "" {
			filters = append(filters, query.Predicate{Search: &query.TextSearch{
				Term:   term,
				Fields: slices.Clone(s.options.SearchFields),
			}})
		}
		return state.WithFilters(filters), nil
	})
}

// SetCategory replaces the categorical filter on field. No values removes it.
func (s *Session[T]) SetCategory(field string, values ...string) error {
	return s.mutate("category", func(state query.ViewState) (query.ViewState, error) {
		filters := removeWhere(state.Filters, func(p query.Predicate) bool { return p.In != nil && p.In.Field == field })
		if len(values) > 0 {
			filters = append(filters, query.Predicate{In: &query.CategoricalIn{Field: field, Values: slices.Clone(values)}})
		}
		return state.WithFilters(filters), nil
	})
}

// SetDateRange replaces the date filter on r.Field. The "All" preset and an
// empty range remove it.
func (s *Session[T]) SetDateRange(r query.DateRange) error {
	return s.mutate("date_range", func(state query.ViewState) (query.ViewState, error) {
		filters := removeWhere(state.Filters, func(p query.Predicate) bool { return p.Date != nil && p.Date.Field == r.Field })
		if r.Preset != query.PresetAll && (r.Preset != "" || r.Start != "" || r.End != "") {
			filters = append(filters, query.Predicate{Date: &r})
		}
		return state.WithFilters(filters), nil
	})
}

// ToggleSort sorts by field. Selecting the current field flips the direction;
// a new field starts ascending.
func (s *Session[T]) ToggleSort(field string) error {
	return s.mutate("sort", func(state query.ViewState) (query.ViewState, error) {
		next := query.SortSpec{Field: field, Direction: query.SortDirectionAsc}
		if state.Sort.Field == field {
			current := state.Sort.Direction
			if current == "" {
				current = query.SortDirectionAsc
			}
			next.Direction = current.Toggle()
		}
		return state.WithSort(next), nil
	})
}

// SetSort sorts by an explicit field and direction.
func (s *Session[T]) SetSort(spec query.SortSpec) error {
	return s.mutate("sort", func(state query.ViewState) (query.ViewState, error) {
		return state.WithSort(spec), nil
	})
}

// SetGroupMode switches between records and groups. Entering a grouped mode
// orders groups by descending cost; leaving it restores the initial sort.
func (s *Session[T]) SetGroupMode(mode query.GroupMode) error {
	return s.mutate("group", func(state query.ViewState) (query.ViewState, error) {
		if mode == state.GroupMode {
			return state, nil
		}
		next := state.WithGroupMode(mode)
		switch {
		case mode.Grouped():
			if cfg := s.processor.Grouping(); cfg != nil && cfg.CostMetric != "" {
				next.Sort = query.SortSpec{Field: cfg.CostMetric, Direction: query.SortDirectionDesc}
			} else {
				next.Sort = query.SortSpec{}
			}
		case state.GroupMode.Grouped():
			next.Sort = s.options.InitialState.Sort
		}
		return next, nil
	})
}

// SetPage moves to page. Out-of-range pages are clamped.
func (s *Session[T]) SetPage(page int) error {
	return s.mutate("page", func(state query.ViewState) (query.ViewState, error) {
		return state.WithPage(page), nil
	})
}

// SetPageSize changes the page size to one of query.PageSizes.
func (s *Session[T]) SetPageSize(size int) error {
	return s.mutate("page_size", func(state query.ViewState) (query.ViewState, error) {
		if !query.IsOfferedPageSize(size) {
			return state, fmt.Errorf("%w: %d is not one of %v", query.ErrInvalidPageSize, size, query.PageSizes)
		}
		return state.WithPageSize(size), nil
	})
}

// SetState replaces the whole state.
func (s *Session[T]) SetState(next query.ViewState) error {
	return s.mutate("state", func(query.ViewState) (query.ViewState, error) {
		return next.WithPage(next.Page), nil
	})
}

// SetRecords replaces the collection and keeps the state. The page number is
// clamped against the new collection.
func (s *Session[T]) SetRecords(records []T) error {
	return s.update("records", &records, func(state query.ViewState) (query.ViewState, error) {
		return state, nil
	})
}

// Reset returns to the initial state.
func (s *Session[T]) Reset() error {
	return s.mutate("reset", func(query.ViewState) (query.ViewState, error) {
		return s.options.InitialState.WithFilters(s.options.InitialState.Filters), nil
	})
}

// Export writes the entire filtered and sorted record set, not just the
// current page. Grouped sessions export their members in group order.
func (s *Session[T]) Export(w io.Writer, columns []export.Column[T]) error {
	m, err := s.materialize()
	if err != nil {
		return err
	}
	rows := m.Records
	if m.Mode.Grouped() {
		rows = nil
		for _, g := range m.Groups {
			rows = append(rows, g.Members...)
		}
	}
	return export.Write(w, rows, columns)
}

// ExportGroups writes one row per group of a grouped session.
func (s *Session[T]) ExportGroups(w io.Writer, columns []export.Column[query.Group[T]]) error {
	m, err := s.materialize()
	if err != nil {
		return err
	}
	if !m.Mode.Grouped() {
		return ErrNotGrouped
	}
	return export.Write(w, m.Groups, columns)
}

func (s *Session[T]) materialize() (*query.Materialized[T], error) {
	s.mu.Lock()
	records, state := s.records, s.state
	s.mu.Unlock()
	return s.processor.Materialize(records, state)
}

// mutate applies fn to the state and recomputes over the current records.
func (s *Session[T]) mutate(operation string, fn func(query.ViewState) (query.ViewState, error)) error {
	return s.update(operation, nil, fn)
}

// update applies fn to the state, optionally swaps the records, and
// recomputes. Events are emitted after the lock is released so subscribers
// may read the session.
func (s *Session[T]) update(operation string, records *[]T, fn func(query.ViewState) (query.ViewState, error)) error {
	start := time.Now()

	s.mu.Lock()
	target := s.records
	if records != nil {
		target = *records
	}
	next, err := fn(s.state.WithPage(s.state.Page))
	if err == nil {
		next, err = s.processor.Normalize(next)
	}
	var result *query.Result[T]
	if err == nil {
		result, err = s.processor.Recompute(target, next)
	}
	if err != nil {
		state := s.state
		s.mu.Unlock()

		s.logger.Warn("View recompute failed", zap.String("operation", operation), zap.Error(err))
		s.emitEvent(createEvent(RecomputeFailed, operation, s.options.Name, state, 0, err, start))
		return err
	}

	s.records = target
	s.state = next
	s.result = result
	s.syncPage()
	state, total := s.state, totalItems(result)
	s.mu.Unlock()

	s.logger.Debug("View updated",
		zap.String("operation", operation),
		zap.Int("page", state.Page),
		zap.Int("total", total))
	s.emitEvent(createEvent(RecomputeSuccess, operation, s.options.Name, state, total, nil, start))
	return nil
}

// syncPage records the clamped page number in the state.
func (s *Session[T]) syncPage() {
	switch {
	case s.result.Records != nil:
		s.state.Page = s.result.Records.PageNumber
	case s.result.Groups != nil:
		s.state.Page = s.result.Groups.PageNumber
	}
}

func totalItems[T any](r *query.Result[T]) int {
	switch {
	case r.Records != nil:
		return r.Records.TotalItems
	case r.Groups != nil:
		return r.Groups.TotalItems
	}
	return 0
}

func removeWhere(filters query.FilterSpec, drop func(query.Predicate) bool) query.FilterSpec {
	out := make(query.FilterSpec, 0, len(filters)+1)
	for _, p := range filters {
		if !drop(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session[T]) emitEvent(event ViewEvent) {
	if s.bus != nil {
		s.bus.Emit(string(event.Type), event)
	}
}

// RegisterSubscription registers a callback for a session event and returns
// an id for UnregisterSubscription.
func (s *Session[T]) RegisterSubscription(options RegisterSubscriptionOptions) string {
	unsubscribe := s.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	s.subMu.Lock()
	s.subscriptions[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	s.subMu.Unlock()

	// Callbacks run synchronously and may call back into the session.
	s.emitEvent(ViewEvent{
		Type:      SubscriptionRegister,
		Timestamp: time.Now().UnixMilli(),
		View:      s.options.Name,
		Operation: "register_subscription",
		Context:   map[string]any{"subscriptionId": id, "event": string(options.Event)},
	})
	return id
}

// UnregisterSubscription removes a subscription by its id.
func (s *Session[T]) UnregisterSubscription(id string) {
	s.subMu.Lock()
	info, ok := s.subscriptions[id]
	if ok {
		delete(s.subscriptions, id)
	}
	s.subMu.Unlock()
	if !ok {
		return
	}
	info.Unsubscribe()

	s.emitEvent(ViewEvent{
		Type:      SubscriptionUnregister,
		Timestamp: time.Now().UnixMilli(),
		View:      s.options.Name,
		Operation: "unregister_subscription",
		Context:   map[string]any{"subscriptionId": id},
	})
}

// Subscriptions lists the active subscriptions.
func (s *Session[T]) Subscriptions() []SubscriptionInfo {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
