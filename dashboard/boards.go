package dashboard

import (
	"strconv"
	"time"

	"github.com/asaidimu/go-tabula/core/export"
	"github.com/asaidimu/go-tabula/core/query"
	"github.com/asaidimu/go-tabula/core/schema"
)

// Board names.
const (
	QueriesBoard         = "queries"
	WarehousesBoard      = "warehouses"
	AccountsBoard        = "accounts"
	RecommendationsBoard = "recommendations"
	TasksBoard           = "assigned-tasks"
	UsersBoard           = "users"
)

const timeLayout = "2006-01-02 15:04:05"

func money(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// optional maps a blank string to the empty sentinel.
func optional(s string) schema.Value {
	if s == "" {
		return schema.Empty(schema.FieldTypeString)
	}
	return schema.String(s)
}

var queryFields = schema.MustFieldSet(
	schema.Field[Query]{Key: "id", Type: schema.FieldTypeString, Label: "ID", Accessor: func(q Query) schema.Value { return schema.String(q.ID) }},
	schema.Field[Query]{Key: "text", Type: schema.FieldTypeString, Label: "Query", Accessor: func(q Query) schema.Value { return schema.String(q.Text) }},
	schema.Field[Query]{Key: "pattern", Type: schema.FieldTypeString, Label: "Pattern", Accessor: func(q Query) schema.Value { return optional(q.Pattern) }},
	schema.Field[Query]{Key: "warehouse", Type: schema.FieldTypeString, Label: "Warehouse", Accessor: func(q Query) schema.Value { return schema.String(q.Warehouse) }},
	schema.Field[Query]{Key: "user", Type: schema.FieldTypeString, Label: "User", Accessor: func(q Query) schema.Value { return schema.String(q.User) }},
	schema.Field[Query]{Key: "status", Type: schema.FieldTypeString, Label: "Status", Accessor: func(q Query) schema.Value { return schema.String(q.Status) }},
	schema.Field[Query]{Key: "durationMs", Type: schema.FieldTypeNumber, Label: "Duration (ms)", Accessor: func(q Query) schema.Value { return schema.Number(q.DurationMs) }},
	schema.Field[Query]{Key: "bytesScanned", Type: schema.FieldTypeNumber, Label: "Bytes Scanned", Accessor: func(q Query) schema.Value { return schema.Number(q.BytesScanned) }},
	schema.Field[Query]{Key: "cost", Type: schema.FieldTypeNumber, Label: "Cost ($)", Accessor: func(q Query) schema.Value { return schema.Number(q.Cost) }},
	schema.Field[Query]{Key: "executedAt", Type: schema.FieldTypeTimestamp, Label: "Executed At", Accessor: func(q Query) schema.Value { return schema.Timestamp(q.ExecutedAt) }},
)

// NewQueriesBoard mounts query executions. Exact grouping clusters repeated
// statements; pattern grouping clusters by the precomputed pattern tag.
func NewQueriesBoard(records []Query, opts ...query.Option) (*TypedBoard[Query], error) {
	metrics := []query.Metric{
		{Name: query.DefaultCostMetric, Field: "cost"},
		{Name: "totalDurationMs", Field: "durationMs"},
	}
	return NewBoard(BoardSpec[Query]{
		Name:         QueriesBoard,
		Title:        "Queries",
		Fields:       queryFields,
		SearchFields: []string{"id", "text", "user", "warehouse"},
		DefaultSort:  "cost",
		Grouping: &query.GroupConfig{
			KeyField:   "text",
			TagField:   "pattern",
			CostMetric: query.DefaultCostMetric,
			Metrics:    metrics,
		},
		Summary: metrics,
		Columns: []export.Column[Query]{
			{Header: "ID", Formatter: func(q Query) string { return q.ID }},
			{Header: "Query", Formatter: func(q Query) string { return q.Text }},
			{Header: "Pattern", Formatter: func(q Query) string { return q.Pattern }},
			{Header: "Warehouse", Formatter: func(q Query) string { return q.Warehouse }},
			{Header: "User", Formatter: func(q Query) string { return q.User }},
			{Header: "Status", Formatter: func(q Query) string { return q.Status }},
			{Header: "Duration (ms)", Formatter: func(q Query) string { return strconv.FormatFloat(q.DurationMs, 'f', -1, 64) }},
			{Header: "Cost ($)", Formatter: func(q Query) string { return money(q.Cost) }},
			{Header: "Executed At", Formatter: func(q Query) string { return formatTime(q.ExecutedAt) }},
		},
	}, records, opts...)
}

var warehouseFields = schema.MustFieldSet(
	schema.Field[Warehouse]{Key: "id", Type: schema.FieldTypeString, Label: "ID", Accessor: func(w Warehouse) schema.Value { return schema.String(w.ID) }},
	schema.Field[Warehouse]{Key: "name", Type: schema.FieldTypeString, Label: "Name", Accessor: func(w Warehouse) schema.Value { return schema.String(w.Name) }},
	schema.Field[Warehouse]{Key: "account", Type: schema.FieldTypeString, Label: "Account", Accessor: func(w Warehouse) schema.Value { return schema.String(w.Account) }},
	schema.Field[Warehouse]{Key: "size", Type: schema.FieldTypeString, Label: "Size", Accessor: func(w Warehouse) schema.Value { return schema.String(w.Size) }},
	schema.Field[Warehouse]{Key: "status", Type: schema.FieldTypeString, Label: "Status", Accessor: func(w Warehouse) schema.Value { return schema.String(w.Status) }},
	schema.Field[Warehouse]{Key: "credits", Type: schema.FieldTypeNumber, Label: "Credits", Accessor: func(w Warehouse) schema.Value { return schema.Number(w.Credits) }},
	schema.Field[Warehouse]{Key: "cost", Type: schema.FieldTypeNumber, Label: "Cost ($)", Accessor: func(w Warehouse) schema.Value { return schema.Number(w.Cost) }},
	schema.Field[Warehouse]{Key: "queries", Type: schema.FieldTypeNumber, Label: "Queries", Accessor: func(w Warehouse) schema.Value { return schema.Number(float64(w.Queries)) }},
	schema.Field[Warehouse]{Key: "lastActive", Type: schema.FieldTypeTimestamp, Label: "Last Active", Accessor: func(w Warehouse) schema.Value { return schema.Timestamp(w.LastActive) }},
)

// NewWarehousesBoard mounts warehouses, groupable by size.
func NewWarehousesBoard(records []Warehouse, opts ...query.Option) (*TypedBoard[Warehouse], error) {
	metrics := []query.Metric{
		{Name: query.DefaultCostMetric, Field: "cost"},
		{Name: "totalCredits", Field: "credits"},
	}
	return NewBoard(BoardSpec[Warehouse]{
		Name:         WarehousesBoard,
		Title:        "Warehouses",
		Fields:       warehouseFields,
		SearchFields: []string{"name", "account"},
		DefaultSort:  "cost",
		Grouping: &query.GroupConfig{
			KeyField: "account",
			TagField: "size",
			Metrics:  metrics,
		},
		Summary: metrics,
		Columns: []export.Column[Warehouse]{
			{Header: "Name", Formatter: func(w Warehouse) string { return w.Name }},
			{Header: "Account", Formatter: func(w Warehouse) string { return w.Account }},
			{Header: "Size", Formatter: func(w Warehouse) string { return w.Size }},
			{Header: "Status", Formatter: func(w Warehouse) string { return w.Status }},
			{Header: "Credits", Formatter: func(w Warehouse) string { return money(w.Credits) }},
			{Header: "Cost ($)", Formatter: func(w Warehouse) string { return money(w.Cost) }},
			{Header: "Queries", Formatter: func(w Warehouse) string { return strconv.Itoa(w.Queries) }},
			{Header: "Last Active", Formatter: func(w Warehouse) string { return formatTime(w.LastActive) }},
		},
	}, records, opts...)
}

var accountFields = schema.MustFieldSet(
	schema.Field[Account]{Key: "id", Type: schema.FieldTypeString, Label: "ID", Accessor: func(a Account) schema.Value { return schema.String(a.ID) }},
	schema.Field[Account]{Key: "name", Type: schema.FieldTypeString, Label: "Name", Accessor: func(a Account) schema.Value { return schema.String(a.Name) }},
	schema.Field[Account]{Key: "region", Type: schema.FieldTypeString, Label: "Region", Accessor: func(a Account) schema.Value { return schema.String(a.Region) }},
	schema.Field[Account]{Key: "plan", Type: schema.FieldTypeString, Label: "Plan", Accessor: func(a Account) schema.Value { return schema.String(a.Plan) }},
	schema.Field[Account]{Key: "owner", Type: schema.FieldTypeString, Label: "Owner", Accessor: func(a Account) schema.Value { return schema.String(a.Owner) }},
	schema.Field[Account]{Key: "warehouses", Type: schema.FieldTypeNumber, Label: "Warehouses", Accessor: func(a Account) schema.Value { return schema.Number(float64(a.Warehouses)) }},
	schema.Field[Account]{Key: "cost", Type: schema.FieldTypeNumber, Label: "Cost ($)", Accessor: func(a Account) schema.Value { return schema.Number(a.Cost) }},
	schema.Field[Account]{Key: "createdAt", Type: schema.FieldTypeTimestamp, Label: "Created", Accessor: func(a Account) schema.Value { return schema.Timestamp(a.CreatedAt) }},
)

// NewAccountsBoard mounts billing accounts. Accounts are not grouped.
func NewAccountsBoard(records []Account, opts ...query.Option) (*TypedBoard[Account], error) {
	return NewBoard(BoardSpec[Account]{
		Name:         AccountsBoard,
		Title:        "Accounts",
		Fields:       accountFields,
		SearchFields: []string{"name", "owner", "region"},
		DefaultSort:  "cost",
		Summary:      []query.Metric{{Name: query.DefaultCostMetric, Field: "cost"}},
		Columns: []export.Column[Account]{
			{Header: "Name", Formatter: func(a Account) string { return a.Name }},
			{Header: "Region", Formatter: func(a Account) string { return a.Region }},
			{Header: "Plan", Formatter: func(a Account) string { return a.Plan }},
			{Header: "Owner", Formatter: func(a Account) string { return a.Owner }},
			{Header: "Warehouses", Formatter: func(a Account) string { return strconv.Itoa(a.Warehouses) }},
			{Header: "Cost ($)", Formatter: func(a Account) string { return money(a.Cost) }},
			{Header: "Created", Formatter: func(a Account) string { return formatTime(a.CreatedAt) }},
		},
	}, records, opts...)
}

var recommendationFields = schema.MustFieldSet(
	schema.Field[Recommendation]{Key: "id", Type: schema.FieldTypeString, Label: "ID", Accessor: func(r Recommendation) schema.Value { return schema.String(r.ID) }},
	schema.Field[Recommendation]{Key: "title", Type: schema.FieldTypeString, Label: "Title", Accessor: func(r Recommendation) schema.Value { return schema.String(r.Title) }},
	schema.Field[Recommendation]{Key: "category", Type: schema.FieldTypeString, Label: "Category", Accessor: func(r Recommendation) schema.Value { return optional(r.Category) }},
	schema.Field[Recommendation]{Key: "severity", Type: schema.FieldTypeString, Label: "Severity", Accessor: func(r Recommendation) schema.Value { return schema.String(r.Severity) }},
	schema.Field[Recommendation]{Key: "status", Type: schema.FieldTypeString, Label: "Status", Accessor: func(r Recommendation) schema.Value { return schema.String(r.Status) }},
	schema.Field[Recommendation]{Key: "target", Type: schema.FieldTypeString, Label: "Target", Accessor: func(r Recommendation) schema.Value { return schema.String(r.Target) }},
	schema.Field[Recommendation]{Key: "savings", Type: schema.FieldTypeNumber, Label: "Savings ($)", Accessor: func(r Recommendation) schema.Value { return schema.Number(r.Savings) }},
	schema.Field[Recommendation]{Key: "createdAt", Type: schema.FieldTypeTimestamp, Label: "Created", Accessor: func(r Recommendation) schema.Value { return schema.Timestamp(r.CreatedAt) }},
)

// NewRecommendationsBoard mounts recommendations, groupable by category.
func NewRecommendationsBoard(records []Recommendation, opts ...query.Option) (*TypedBoard[Recommendation], error) {
	metrics := []query.Metric{{Name: "totalSavings", Field: "savings"}}
	return NewBoard(BoardSpec[Recommendation]{
		Name:         RecommendationsBoard,
		Title:        "Recommendations",
		Fields:       recommendationFields,
		SearchFields: []string{"title", "target"},
		DefaultSort:  "savings",
		Grouping: &query.GroupConfig{
			KeyField: "title",
			TagField: "category",
			Metrics:  metrics,
		},
		Summary: metrics,
		Columns: []export.Column[Recommendation]{
			{Header: "Title", Formatter: func(r Recommendation) string { return r.Title }},
			{Header: "Category", Formatter: func(r Recommendation) string { return r.Category }},
			{Header: "Severity", Formatter: func(r Recommendation) string { return r.Severity }},
			{Header: "Status", Formatter: func(r Recommendation) string { return r.Status }},
			{Header: "Target", Formatter: func(r Recommendation) string { return r.Target }},
			{Header: "Savings ($)", Formatter: func(r Recommendation) string { return money(r.Savings) }},
			{Header: "Created", Formatter: func(r Recommendation) string { return formatTime(r.CreatedAt) }},
		},
	}, records, opts...)
}

var taskFields = schema.MustFieldSet(
	schema.Field[AssignedTask]{Key: "id", Type: schema.FieldTypeString, Label: "ID", Accessor: func(t AssignedTask) schema.Value { return schema.String(t.ID) }},
	schema.Field[AssignedTask]{Key: "title", Type: schema.FieldTypeString, Label: "Title", Accessor: func(t AssignedTask) schema.Value { return schema.String(t.Title) }},
	schema.Field[AssignedTask]{Key: "recommendation", Type: schema.FieldTypeString, Label: "Recommendation", Accessor: func(t AssignedTask) schema.Value { return optional(t.Recommendation) }},
	schema.Field[AssignedTask]{Key: "assignee", Type: schema.FieldTypeString, Label: "Assignee", Accessor: func(t AssignedTask) schema.Value { return optional(t.Assignee) }},
	schema.Field[AssignedTask]{Key: "priority", Type: schema.FieldTypeString, Label: "Priority", Accessor: func(t AssignedTask) schema.Value { return schema.String(t.Priority) }},
	schema.Field[AssignedTask]{Key: "status", Type: schema.FieldTypeString, Label: "Status", Accessor: func(t AssignedTask) schema.Value { return schema.String(t.Status) }},
	schema.Field[AssignedTask]{Key: "estimatedSavings", Type: schema.FieldTypeNumber, Label: "Est. Savings ($)", Accessor: func(t AssignedTask) schema.Value { return schema.Number(t.EstimatedSavings) }},
	schema.Field[AssignedTask]{Key: "dueAt", Type: schema.FieldTypeTimestamp, Label: "Due", Accessor: func(t AssignedTask) schema.Value { return schema.Timestamp(t.DueAt) }},
	schema.Field[AssignedTask]{Key: "createdAt", Type: schema.FieldTypeTimestamp, Label: "Created", Accessor: func(t AssignedTask) schema.Value { return schema.Timestamp(t.CreatedAt) }},
)

// NewTasksBoard mounts assigned tasks, groupable by assignee.
func NewTasksBoard(records []AssignedTask, opts ...query.Option) (*TypedBoard[AssignedTask], error) {
	metrics := []query.Metric{{Name: "totalSavings", Field: "estimatedSavings"}}
	return NewBoard(BoardSpec[AssignedTask]{
		Name:         TasksBoard,
		Title:        "Assigned Tasks",
		Fields:       taskFields,
		SearchFields: []string{"title", "assignee", "recommendation"},
		DefaultSort:  "estimatedSavings",
		Grouping: &query.GroupConfig{
			KeyField:   "recommendation",
			TagField:   "assignee",
			DefaultTag: "Unassigned",
			Metrics:    metrics,
		},
		Summary: metrics,
		Columns: []export.Column[AssignedTask]{
			{Header: "Title", Formatter: func(t AssignedTask) string { return t.Title }},
			{Header: "Recommendation", Formatter: func(t AssignedTask) string { return t.Recommendation }},
			{Header: "Assignee", Formatter: func(t AssignedTask) string { return t.Assignee }},
			{Header: "Priority", Formatter: func(t AssignedTask) string { return t.Priority }},
			{Header: "Status", Formatter: func(t AssignedTask) string { return t.Status }},
			{Header: "Est. Savings ($)", Formatter: func(t AssignedTask) string { return money(t.EstimatedSavings) }},
			{Header: "Due", Formatter: func(t AssignedTask) string { return formatTime(t.DueAt) }},
		},
	}, records, opts...)
}

var userFields = schema.MustFieldSet(
	schema.Field[User]{Key: "id", Type: schema.FieldTypeString, Label: "ID", Accessor: func(u User) schema.Value { return schema.String(u.ID) }},
	schema.Field[User]{Key: "name", Type: schema.FieldTypeString, Label: "Name", Accessor: func(u User) schema.Value { return schema.String(u.Name) }},
	schema.Field[User]{Key: "email", Type: schema.FieldTypeString, Label: "Email", Accessor: func(u User) schema.Value { return schema.String(u.Email) }},
	schema.Field[User]{Key: "role", Type: schema.FieldTypeString, Label: "Role", Accessor: func(u User) schema.Value { return schema.String(u.Role) }},
	schema.Field[User]{Key: "status", Type: schema.FieldTypeString, Label: "Status", Accessor: func(u User) schema.Value { return schema.String(u.Status) }},
	schema.Field[User]{Key: "queries", Type: schema.FieldTypeNumber, Label: "Queries", Accessor: func(u User) schema.Value { return schema.Number(float64(u.Queries)) }},
	schema.Field[User]{Key: "cost", Type: schema.FieldTypeNumber, Label: "Cost ($)", Accessor: func(u User) schema.Value { return schema.Number(u.Cost) }},
	schema.Field[User]{Key: "lastLogin", Type: schema.FieldTypeTimestamp, Label: "Last Login", Accessor: func(u User) schema.Value { return schema.Timestamp(u.LastLogin) }},
)

// NewUsersBoard mounts users, groupable by role.
func NewUsersBoard(records []User, opts ...query.Option) (*TypedBoard[User], error) {
	metrics := []query.Metric{{Name: query.DefaultCostMetric, Field: "cost"}}
	return NewBoard(BoardSpec[User]{
		Name:         UsersBoard,
		Title:        "Users",
		Fields:       userFields,
		SearchFields: []string{"name", "email"},
		DefaultSort:  "cost",
		Grouping: &query.GroupConfig{
			KeyField: "name",
			TagField: "role",
			Metrics:  metrics,
		},
		Summary: metrics,
		Columns: []export.Column[User]{
			{Header: "Name", Formatter: func(u User) string { return u.Name }},
			{Header: "Email", Formatter: func(u User) string { return u.Email }},
			{Header: "Role", Formatter: func(u User) string { return u.Role }},
			{Header: "Status", Formatter: func(u User) string { return u.Status }},
			{Header: "Queries", Formatter: func(u User) string { return strconv.Itoa(u.Queries) }},
			{Header: "Cost ($)", Formatter: func(u User) string { return money(u.Cost) }},
			{Header: "Last Login", Formatter: func(u User) string { return formatTime(u.LastLogin) }},
		},
	}, records, opts...)
}
