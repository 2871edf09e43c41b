package query

import (
	"time"

	"github.com/asaidimu/go-tabula/core/schema"
)

type execution struct {
	ID         string
	Text       string
	Pattern    string
	Status     string
	Cost       float64
	ExecutedAt time.Time
}

var executionFields = schema.MustFieldSet(
	schema.Field[execution]{Key: "id", Type: schema.FieldTypeString, Accessor: func(e execution) schema.Value { return schema.String(e.ID) }},
	schema.Field[execution]{Key: "text", Type: schema.FieldTypeString, Accessor: func(e execution) schema.Value { return schema.String(e.Text) }},
	schema.Field[execution]{Key: "pattern", Type: schema.FieldTypeString, Accessor: func(e execution) schema.Value {
		if e.Pattern == "" {
			return schema.Empty(schema.FieldTypeString)
		}
		return schema.String(e.Pattern)
	}},
	schema.Field[execution]{Key: "status", Type: schema.FieldTypeString, Accessor: func(e execution) schema.Value { return schema.String(e.Status) }},
	schema.Field[execution]{Key: "cost", Type: schema.FieldTypeNumber, Accessor: func(e execution) schema.Value { return schema.Number(e.Cost) }},
	schema.Field[execution]{Key: "executedAt", Type: schema.FieldTypeTimestamp, Accessor: func(e execution) schema.Value { return schema.Timestamp(e.ExecutedAt) }},
)

var fixedNow = time.Date(2023, 11, 21, 12, 0, 0, 0, time.UTC)

func sampleExecutions() []execution {
	return []execution{
		{ID: "q1", Text: "SELECT * FROM orders", Pattern: "Full Scan", Status: "success", Cost: 4, ExecutedAt: fixedNow.Add(-2 * time.Hour)},
		{ID: "q2", Text: "SELECT 1", Pattern: "Trivial", Status: "failed", Cost: 2, ExecutedAt: fixedNow.Add(-3 * 24 * time.Hour)},
		{ID: "q3", Text: "select id from users", Pattern: "", Status: "success", Cost: 4, ExecutedAt: fixedNow.Add(-10 * 24 * time.Hour)},
		{ID: "q4", Text: "SELECT 1", Pattern: "Trivial", Status: "running", Cost: 3, ExecutedAt: fixedNow.Add(-40 * 24 * time.Hour)},
		{ID: "q5", Text: "SELECT * FROM orders", Pattern: "Full Scan", Status: "success", Cost: 9.5, ExecutedAt: fixedNow.Add(-30 * time.Minute)},
		{ID: "q6", Text: "UPDATE users SET name = 'x'", Pattern: "", Status: "failed", Cost: 1, ExecutedAt: time.Time{}},
	}
}

func ids(records []execution) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func testOptions() EngineOptions {
	return EngineOptions{Now: fixedNow}
}
