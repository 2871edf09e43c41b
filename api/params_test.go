package api

import (
	"net/url"
	"testing"

	"github.com/asaidimu/go-tabula/core/query"
	"github.com/asaidimu/go-tabula/dashboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBoard(t *testing.T, name string) dashboard.Board {
	t.Helper()
	board, ok := newTestCatalog(t, false).Board(name)
	require.True(t, ok)
	return board
}

func parse(t *testing.T, board dashboard.Board, raw string) (query.ViewState, error) {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return ParseState(board, values)
}

func TestParseState_Defaults(t *testing.T) {
	board := testBoard(t, dashboard.QueriesBoard)

	state, err := parse(t, board, "")
	require.NoError(t, err)
	assert.Equal(t, board.DefaultState(), state)
}

func TestParseState_Filters(t *testing.T) {
	board := testBoard(t, dashboard.QueriesBoard)

	state, err := parse(t, board, "filter.warehouse=ETL_WH,ANALYTICS_WH&filter.status=failed&filter.status=succeeded&q=%20orders%20&range=30d&page=2")
	require.NoError(t, err)

	assert.Equal(t, query.FilterSpec{
		{Search: &query.TextSearch{Term: "orders", Fields: []string{"id", "text", "user", "warehouse"}}},
		{In: &query.CategoricalIn{Field: "status", Values: []string{"failed", "succeeded"}}},
		{In: &query.CategoricalIn{Field: "warehouse", Values: []string{"ETL_WH", "ANALYTICS_WH"}}},
		{Date: &query.DateRange{Field: "executedAt", Preset: query.PresetLastMonth}},
	}, state.Filters)
	assert.Equal(t, 2, state.Page, "page is applied after the filters reset it")
}

func TestParseState_DateRange(t *testing.T) {
	board := testBoard(t, dashboard.TasksBoard)

	state, err := parse(t, board, "from=2024-03-01&to=2024-03-31&dateField=createdAt")
	require.NoError(t, err)
	require.Len(t, state.Filters, 1)
	assert.Equal(t, &query.DateRange{Field: "createdAt", Start: "2024-03-01", End: "2024-03-31"}, state.Filters[0].Date)

	state, err = parse(t, board, "from=2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "dueAt", state.Filters[0].Date.Field, "first timestamp field is the default")

	state, err = parse(t, board, "range=All")
	require.NoError(t, err)
	assert.Empty(t, state.Filters)

	_, err = parse(t, board, "range=1y")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = parse(t, board, "range=7d&dateField=estimatedSavings")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseState_GroupAndSort(t *testing.T) {
	board := testBoard(t, dashboard.RecommendationsBoard)

	state, err := parse(t, board, "group=pattern")
	require.NoError(t, err)
	assert.Equal(t, query.GroupModePattern, state.GroupMode)
	assert.Equal(t, query.SortSpec{Field: "totalSavings", Direction: query.SortDirectionDesc}, state.Sort)

	state, err = parse(t, board, "group=exact&sort=count&dir=desc")
	require.NoError(t, err)
	assert.Equal(t, query.SortSpec{Field: "count", Direction: query.SortDirectionDesc}, state.Sort)

	state, err = parse(t, board, "sort=title")
	require.NoError(t, err)
	assert.Equal(t, query.SortSpec{Field: "title", Direction: query.SortDirectionAsc}, state.Sort)

	state, err = parse(t, board, "group=none&pageSize=50")
	require.NoError(t, err)
	assert.Equal(t, query.GroupModeNone, state.GroupMode)
	assert.Equal(t, "savings", state.Sort.Field)
	assert.Equal(t, 50, state.PageSize)
}

func TestParseState_Errors(t *testing.T) {
	board := testBoard(t, dashboard.QueriesBoard)

	for _, raw := range []string{
		"pageSize=0",
		"pageSize=15",
		"pageSize=ten",
		"page=first",
		"dir=up&sort=cost",
		"group=both",
		"filter.=x",
		"range=2w",
	} {
		_, err := parse(t, board, raw)
		assert.ErrorIs(t, err, ErrInvalidQuery, raw)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", " ", "c,"}))
	assert.Equal(t, []string{}, splitList(nil))
}
