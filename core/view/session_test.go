package view

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-tabula/core/export"
	"github.com/asaidimu/go-tabula/core/query"
	"github.com/asaidimu/go-tabula/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type task struct {
	ID       string
	Title    string
	Owner    string
	Cost     float64
	Category string
	Created  time.Time
}

var now = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

var taskFields = schema.MustFieldSet(
	schema.Field[task]{Key: "id", Type: schema.FieldTypeString, Accessor: func(t task) schema.Value { return schema.String(t.ID) }},
	schema.Field[task]{Key: "title", Type: schema.FieldTypeString, Accessor: func(t task) schema.Value { return schema.String(t.Title) }},
	schema.Field[task]{Key: "owner", Type: schema.FieldTypeString, Accessor: func(t task) schema.Value { return schema.String(t.Owner) }},
	schema.Field[task]{Key: "cost", Type: schema.FieldTypeNumber, Accessor: func(t task) schema.Value { return schema.Number(t.Cost) }},
	schema.Field[task]{Key: "category", Type: schema.FieldTypeString, Accessor: func(t task) schema.Value { return schema.String(t.Category) }},
	schema.Field[task]{Key: "created", Type: schema.FieldTypeTimestamp, Accessor: func(t task) schema.Value { return schema.Timestamp(t.Created) }},
)

func makeTasks(n int) []task {
	out := make([]task, n)
	for i := range out {
		out[i] = task{
			ID:       fmt.Sprintf("t%02d", i+1),
			Title:    fmt.Sprintf("Task %d", i+1),
			Owner:    []string{"ana", "ben", "cy"}[i%3],
			Cost:     float64(i + 1),
			Category: []string{"Index", "Cluster"}[i%2],
			Created:  now.Add(-time.Duration(i) * 24 * time.Hour),
		}
	}
	return out
}

func newTestSession(t *testing.T, records []task) *Session[task] {
	t.Helper()
	processor, err := query.NewViewProcessor(taskFields,
		query.WithClock(func() time.Time { return now }),
		query.WithGrouping(query.GroupConfig{
			KeyField: "title",
			TagField: "category",
			Metrics:  []query.Metric{{Name: "totalCost", Field: "cost"}},
		}),
	)
	require.NoError(t, err)

	options := DefaultSessionOptions()
	options.Name = "tasks"
	options.InitialState = query.DefaultViewState("cost")
	options.SearchFields = []string{"title", "owner"}

	session, err := NewSession(processor, records, options)
	require.NoError(t, err)
	return session
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t, makeTasks(25))
	state, result := s.Current()

	assert.Equal(t, "tasks", s.Name())
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, query.SortSpec{Field: "cost", Direction: query.SortDirectionDesc}, state.Sort)
	require.NotNil(t, result.Records)
	assert.Equal(t, "t25", result.Records.Items[0].ID)
	assert.Equal(t, 3, result.Records.TotalPages)

	_, err := NewSession[task](nil, nil, nil)
	assert.Error(t, err)
}

func TestSession_FiltersResetPage(t *testing.T) {
	s := newTestSession(t, makeTasks(25))
	require.NoError(t, s.SetPage(3))
	state, _ := s.Current()
	assert.Equal(t, 3, state.Page)

	require.NoError(t, s.SetSearch("ana"))
	state, result := s.Current()
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, 9, result.Records.TotalItems)
	for _, r := range result.Records.Items {
		assert.Equal(t, "ana", r.Owner)
	}

	require.NoError(t, s.SetSearch("bEn"))
	state, result = s.Current()
	require.Len(t, state.Filters, 1)
	assert.Equal(t, 8, result.Records.TotalItems)

	require.NoError(t, s.SetSearch(""))
	state, _ = s.Current()
	assert.Empty(t, state.Filters)
}

func TestSession_Category(t *testing.T) {
	s := newTestSession(t, makeTasks(10))

	require.NoError(t, s.SetCategory("owner", "ana", "cy"))
	_, result := s.Current()
	assert.Equal(t, 7, result.Records.TotalItems)

	require.NoError(t, s.SetCategory("owner"))
	state, result := s.Current()
	assert.Empty(t, state.Filters)
	assert.Equal(t, 10, result.Records.TotalItems)
}

func TestSession_DateRange(t *testing.T) {
	s := newTestSession(t, makeTasks(40))

	require.NoError(t, s.SetDateRange(query.DateRange{Field: "created", Preset: query.PresetLastWeek}))
	_, result := s.Current()
	assert.Equal(t, 8, result.Records.TotalItems)

	require.NoError(t, s.SetDateRange(query.DateRange{Field: "created", Start: "2024-03-01", End: "2024-03-02"}))
	state, result := s.Current()
	require.Len(t, state.Filters, 1)
	assert.Equal(t, 2, result.Records.TotalItems)

	require.NoError(t, s.SetDateRange(query.DateRange{Field: "created", Preset: query.PresetAll}))
	state, _ = s.Current()
	assert.Empty(t, state.Filters)

	err := s.SetDateRange(query.DateRange{Field: "created", Start: "03/01/2024"})
	assert.ErrorIs(t, err, query.ErrInvalidFilter)
	state, _ = s.Current()
	assert.Empty(t, state.Filters)
}

func TestSession_ToggleSort(t *testing.T) {
	s := newTestSession(t, makeTasks(5))

	require.NoError(t, s.ToggleSort("cost"))
	state, result := s.Current()
	assert.Equal(t, query.SortDirectionAsc, state.Sort.Direction)
	assert.Equal(t, "t01", result.Records.Items[0].ID)

	require.NoError(t, s.ToggleSort("cost"))
	state, _ = s.Current()
	assert.Equal(t, query.SortDirectionDesc, state.Sort.Direction)

	require.NoError(t, s.ToggleSort("title"))
	state, _ = s.Current()
	assert.Equal(t, query.SortSpec{Field: "title", Direction: query.SortDirectionAsc}, state.Sort)
}

func TestSession_GroupMode(t *testing.T) {
	s := newTestSession(t, makeTasks(5))
	require.NoError(t, s.ToggleSort("title"))

	require.NoError(t, s.SetGroupMode(query.GroupModePattern))
	state, result := s.Current()
	assert.Equal(t, query.SortSpec{Field: "totalCost", Direction: query.SortDirectionDesc}, state.Sort)
	require.NotNil(t, result.Groups)
	require.Len(t, result.Groups.Items, 2)
	assert.Equal(t, "Index", result.Groups.Items[0].Key)
	assert.Equal(t, "9", result.Groups.Items[0].Total("totalCost").String())

	require.NoError(t, s.ToggleSort(query.GroupFieldCount))
	_, result = s.Current()
	assert.Equal(t, "Cluster", result.Groups.Items[0].Key)

	require.NoError(t, s.SetGroupMode(query.GroupModeNone))
	state, result = s.Current()
	assert.Equal(t, query.SortSpec{Field: "cost", Direction: query.SortDirectionDesc}, state.Sort)
	assert.NotNil(t, result.Records)
	assert.Nil(t, result.Groups)
}

func TestSession_PageSize(t *testing.T) {
	s := newTestSession(t, makeTasks(45))
	require.NoError(t, s.SetPage(4))

	require.NoError(t, s.SetPageSize(20))
	state, result := s.Current()
	assert.Equal(t, 1, state.Page)
	assert.Equal(t, 20, state.PageSize)
	assert.Len(t, result.Records.Items, 20)

	err := s.SetPageSize(15)
	assert.ErrorIs(t, err, query.ErrInvalidPageSize)
	state, _ = s.Current()
	assert.Equal(t, 20, state.PageSize)
}

func TestSession_PageClamp(t *testing.T) {
	s := newTestSession(t, makeTasks(25))

	require.NoError(t, s.SetPage(99))
	state, result := s.Current()
	assert.Equal(t, 3, state.Page)
	assert.Equal(t, 3, result.Records.PageNumber)

	require.NoError(t, s.SetRecords(makeTasks(12)))
	state, result = s.Current()
	assert.Equal(t, 2, state.Page)
	assert.Len(t, result.Records.Items, 2)
}

func TestSession_Reset(t *testing.T) {
	s := newTestSession(t, makeTasks(25))
	initial, _ := s.Current()

	require.NoError(t, s.SetSearch("ben"))
	require.NoError(t, s.SetGroupMode(query.GroupModeExact))
	require.NoError(t, s.SetPageSize(50))

	require.NoError(t, s.Reset())
	state, _ := s.Current()
	assert.Equal(t, initial, state)
}

func TestSession_Export(t *testing.T) {
	s := newTestSession(t, makeTasks(25))
	require.NoError(t, s.SetCategory("owner", "cy"))

	columns := []export.Column[task]{
		{Header: "ID", Formatter: func(t task) string { return t.ID }},
		{Header: "Owner", Formatter: func(t task) string { return t.Owner }},
	}

	var buf bytes.Buffer
	require.NoError(t, s.Export(&buf, columns))
	lines := strings.Split(buf.String(), "\n")
	assert.Len(t, lines, 9)
	assert.Equal(t, `"ID","Owner"`, lines[0])
	assert.Equal(t, `"t24","cy"`, lines[1])

	groupColumns := []export.Column[query.Group[task]]{
		{Header: "Category", Formatter: func(g query.Group[task]) string { return g.Key }},
	}
	assert.ErrorIs(t, s.ExportGroups(&buf, groupColumns), ErrNotGrouped)

	require.NoError(t, s.SetGroupMode(query.GroupModePattern))
	buf.Reset()
	require.NoError(t, s.ExportGroups(&buf, groupColumns))
	assert.Equal(t, "\"Category\"\n\"Cluster\"\n\"Index\"", buf.String())
}

func TestSession_Events(t *testing.T) {
	s := newTestSession(t, makeTasks(10))

	var mu sync.Mutex
	var received []ViewEvent
	record := func(ctx context.Context, e ViewEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
		return nil
	}
	snapshot := func() []ViewEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]ViewEvent(nil), received...)
	}

	label := "audit"
	okID := s.RegisterSubscription(RegisterSubscriptionOptions{Event: RecomputeSuccess, Label: &label, Callback: record})
	failID := s.RegisterSubscription(RegisterSubscriptionOptions{Event: RecomputeFailed, Callback: record})
	assert.NotEqual(t, okID, failID)
	assert.Len(t, s.Subscriptions(), 2)

	require.NoError(t, s.SetPage(2))
	assert.Error(t, s.SetPageSize(7))

	require.Eventually(t, func() bool { return len(snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	var success, failed *ViewEvent
	for _, e := range snapshot() {
		switch e.Type {
		case RecomputeSuccess:
			success = &e
		case RecomputeFailed:
			failed = &e
		}
	}
	require.NotNil(t, success)
	require.NotNil(t, failed)
	assert.Equal(t, "tasks", success.View)
	assert.Equal(t, "page", success.Operation)
	assert.Equal(t, 10, success.TotalItems)
	assert.Nil(t, success.Error)
	assert.Equal(t, "page_size", failed.Operation)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "invalid page size")

	s.UnregisterSubscription(okID)
	s.UnregisterSubscription(failID)
	s.UnregisterSubscription("missing")
	assert.Empty(t, s.Subscriptions())

	require.NoError(t, s.SetPage(1))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, snapshot(), 2)
}

func TestSession_CallbacksReenterSession(t *testing.T) {
	s := newTestSession(t, makeTasks(3))

	var mu sync.Mutex
	var seen []int
	s.RegisterSubscription(RegisterSubscriptionOptions{
		Event: SubscriptionRegister,
		Callback: func(ctx context.Context, e ViewEvent) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, len(s.Subscriptions()))
			return nil
		},
	})
	var extra string
	s.RegisterSubscription(RegisterSubscriptionOptions{
		Event: SubscriptionUnregister,
		Callback: func(ctx context.Context, e ViewEvent) error {
			s.UnregisterSubscription(extra)
			return nil
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		extra = s.RegisterSubscription(RegisterSubscriptionOptions{Event: RecomputeSuccess, Callback: func(context.Context, ViewEvent) error { return nil }})
		other := s.RegisterSubscription(RegisterSubscriptionOptions{Event: RecomputeFailed, Callback: func(context.Context, ViewEvent) error { return nil }})
		s.UnregisterSubscription(other)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription callback blocked on the session")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
	assert.Len(t, s.Subscriptions(), 2)
}
