package query

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProcessor(t *testing.T, opts ...Option) *ViewProcessor[execution] {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithGrouping(executionGrouping),
		WithSummary(Metric{Name: "totalCost", Field: "cost"}),
		WithLogger(zap.NewNop()),
	}
	p, err := NewViewProcessor(executionFields, append(base, opts...)...)
	require.NoError(t, err)
	return p
}

func TestNewViewProcessor_Validation(t *testing.T) {
	_, err := NewViewProcessor[execution](nil)
	assert.Error(t, err)

	_, err = NewViewProcessor(executionFields,
		WithSummary(Metric{Name: "bytes", Field: "bytesScanned"}),
		WithGrouping(GroupConfig{KeyField: "fingerprint", Metrics: []Metric{{Name: "totalCost", Field: "cost"}}}),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "bytesScanned")
	assert.Contains(t, err.Error(), "fingerprint")

	p, err := NewViewProcessor(executionFields)
	require.NoError(t, err)
	assert.Nil(t, p.Grouping())
	assert.Same(t, executionFields, p.Fields())
}

func TestViewProcessor_Normalize(t *testing.T) {
	p := newTestProcessor(t)

	state, err := p.Normalize(ViewState{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, state.PageSize)
	assert.Equal(t, GroupModeNone, state.GroupMode)

	_, err = p.Normalize(ViewState{PageSize: -1})
	assert.ErrorIs(t, err, ErrInvalidPageSize)

	_, err = p.Normalize(ViewState{GroupMode: "fuzzy"})
	assert.ErrorIs(t, err, ErrInvalidGroupMode)

	_, err = p.Normalize(ViewState{Sort: SortSpec{Field: "cost", Direction: "up"}})
	assert.ErrorIs(t, err, ErrInvalidSort)

	plain, err := NewViewProcessor(executionFields)
	require.NoError(t, err)
	_, err = plain.Normalize(ViewState{GroupMode: GroupModePattern})
	assert.ErrorIs(t, err, ErrInvalidGroupMode)
}

func TestViewProcessor_Recompute_Records(t *testing.T) {
	p := newTestProcessor(t)
	state := NewViewBuilder().
		Where("status").In("success", "failed").
		OrderByDesc("cost").
		PageSize(2).
		Page(2).
		Build()

	result, err := p.Recompute(sampleExecutions(), state)
	require.NoError(t, err)
	require.NotNil(t, result.Records)
	assert.Nil(t, result.Groups)

	assert.Equal(t, GroupModeNone, result.Mode)
	assert.Equal(t, []string{"q3", "q2"}, ids(result.Records.Items))
	assert.Equal(t, 2, result.Records.PageNumber)
	assert.Equal(t, 3, result.Records.TotalPages)
	assert.Equal(t, 5, result.Records.TotalItems)

	assert.Equal(t, 5, result.Summary.Count)
	assert.Equal(t, "20.5", result.Summary.Totals["totalCost"].String())
}

func TestViewProcessor_Recompute_Groups(t *testing.T) {
	p := newTestProcessor(t)
	state := NewViewBuilder().GroupBy(GroupModeExact).OrderByDesc("totalCost").Build()

	result, err := p.Recompute(sampleExecutions(), state)
	require.NoError(t, err)
	require.NotNil(t, result.Groups)
	assert.Nil(t, result.Records)

	assert.Equal(t, []string{"SELECT * FROM orders", "SELECT 1"}, groupKeys(result.Groups.Items))
	assert.Equal(t, 2, result.Groups.TotalItems)
	assert.Equal(t, 2, result.HiddenGroups)
	assert.Equal(t, 6, result.Summary.Count)
}

func TestViewProcessor_Recompute_FilterThenGroup(t *testing.T) {
	p := newTestProcessor(t)
	state := NewViewBuilder().
		Where("executedAt").Within(PresetLastWeek).
		GroupBy(GroupModePattern).
		Build()

	result, err := p.Recompute(sampleExecutions(), state)
	require.NoError(t, err)
	assert.Equal(t, []string{"Full Scan", "Trivial"}, groupKeys(result.Groups.Items))
	assert.Equal(t, 3, result.Summary.Count)
}

func TestViewProcessor_Recompute_Deterministic(t *testing.T) {
	p := newTestProcessor(t)
	state := NewViewBuilder().Search("select", "text").OrderByAsc("executedAt").Build()

	first, err := p.Recompute(sampleExecutions(), state)
	require.NoError(t, err)
	second, err := p.Recompute(sampleExecutions(), state)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestViewProcessor_Recompute_StrictUnknownField(t *testing.T) {
	p := newTestProcessor(t, WithStrict(true))
	_, err := p.Recompute(sampleExecutions(), NewViewBuilder().OrderByAsc("region").Build())
	assert.ErrorIs(t, err, ErrUnknownField)

	for _, term := range []string{"select", "matches nothing"} {
		grouped := NewViewBuilder().Search(term, "text").GroupBy(GroupModePattern).OrderByAsc("region").Build()
		_, err = p.Recompute(sampleExecutions(), grouped)
		assert.ErrorIs(t, err, ErrUnknownField, term)
	}

	lenient := newTestProcessor(t)
	result, err := lenient.Recompute(sampleExecutions(), NewViewBuilder().OrderByAsc("region").Build())
	require.NoError(t, err)
	assert.Equal(t, ids(sampleExecutions()), ids(result.Records.Items))
}

func TestViewProcessor_Materialize(t *testing.T) {
	p := newTestProcessor(t)
	state := NewViewBuilder().OrderByAsc("cost").PageSize(2).Build()

	m, err := p.Materialize(sampleExecutions(), state)
	require.NoError(t, err)
	assert.Len(t, m.Records, 6)
	assert.Equal(t, "q6", m.Records[0].ID)
}

func TestViewProcessor_ConcurrentUse(t *testing.T) {
	p := newTestProcessor(t)
	records := sampleExecutions()
	state := NewViewBuilder().GroupBy(GroupModePattern).Build()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Recompute(records, state)
			assert.NoError(t, err)
			assert.Len(t, result.Groups.Items, 3)
		}()
	}
	wg.Wait()
}
