package schema

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoice struct {
	ID     string
	Amount float64
}

func TestValue_Compare(t *testing.T) {
	early := time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name     string
		a, b     Value
		expected int
	}{
		{"numbers ascending", Number(1), Number(2), -1},
		{"numbers equal", Number(2), Number(2), 0},
		{"strings case sensitive", String("B"), String("a"), -1},
		{"timestamps", Timestamp(late), Timestamp(early), 1},
		{"empty before number", Empty(FieldTypeNumber), Number(math.Inf(-1)), -1},
		{"empty before string", Empty(FieldTypeString), String(""), -1},
		{"both empty", Empty(FieldTypeTimestamp), Empty(FieldTypeTimestamp), 0},
		{"number after empty", Number(0), Empty(FieldTypeNumber), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
		})
	}
}

func TestValue_Normalization(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsEmpty())
	assert.True(t, Timestamp(time.Time{}).IsEmpty())
	assert.False(t, String("").IsEmpty())
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "12.5", Number(12.5).String())
	assert.Equal(t, "3", Number(3).String())
	assert.Equal(t, "2023-11-20T10:00:00Z", Timestamp(time.Date(2023, 11, 20, 10, 0, 0, 0, time.UTC)).String())
	assert.Equal(t, "", Empty(FieldTypeNumber).String())
	assert.Equal(t, "hello", String("hello").String())
}

func TestNewFieldSet(t *testing.T) {
	amount := Field[invoice]{Key: "amount", Type: FieldTypeNumber, Accessor: func(i invoice) Value { return Number(i.Amount) }}
	id := Field[invoice]{Key: "id", Type: FieldTypeString, Accessor: func(i invoice) Value { return String(i.ID) }}

	t.Run("valid definitions", func(t *testing.T) {
		set, err := NewFieldSet(amount, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"amount", "id"}, set.Keys())
		assert.True(t, set.Has("id"))

		v, ok := set.Resolve("amount", invoice{Amount: 4.5})
		assert.True(t, ok)
		assert.Equal(t, Number(4.5), v)
	})

	t.Run("unknown key resolves to sentinel", func(t *testing.T) {
		set := MustFieldSet(amount)
		v, ok := set.Resolve("missing", invoice{})
		assert.False(t, ok)
		assert.True(t, v.IsEmpty())
	})

	t.Run("malformed definitions", func(t *testing.T) {
		_, err := NewFieldSet(
			amount,
			amount,
			Field[invoice]{Key: "", Type: FieldTypeString, Accessor: id.Accessor},
			Field[invoice]{Key: "bad", Type: "boolean"},
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidFieldSet)
		assert.Contains(t, err.Error(), "defined more than once")
		assert.Contains(t, err.Error(), "must not be empty")
		assert.Contains(t, err.Error(), "unsupported field type")
		assert.Contains(t, err.Error(), "accessor must not be nil")
	})

	t.Run("MustFieldSet panics", func(t *testing.T) {
		assert.Panics(t, func() { MustFieldSet(amount, amount) })
	})
}

func TestValidator_Validate(t *testing.T) {
	result := NewValidator([]Field[invoice]{{Key: "x", Type: FieldTypeNumber}}).Validate()
	assert.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "NIL_ACCESSOR", result.Issues[0].Code)
	assert.Equal(t, "fields[0](x)", result.Issues[0].Path)
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		success  bool
	}{
		{"int", 10, 10.0, true},
		{"int64", int64(50), 50.0, true},
		{"float32", float32(60.5), 60.5, true},
		{"float64", 70.5, 70.5, true},
		{"decimal", decimal.RequireFromString("1.25"), 1.25, true},
		{"string_valid_float", "123.45", 123.45, true},
		{"string_invalid", "abc", 0.0, false},
		{"nil", nil, 0.0, false},
		{"unsupported_type", struct{}{}, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ToFloat64(tt.input)
			assert.Equal(t, tt.success, ok)
			if tt.success {
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2023, 11, 20, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, Number(3), Coerce("3", FieldTypeNumber))
	assert.True(t, Coerce("n/a", FieldTypeNumber).IsEmpty())
	assert.True(t, Coerce(nil, FieldTypeString).IsEmpty())
	assert.Equal(t, String("42"), Coerce(42, FieldTypeString))
	for _, raw := range []any{"2023-11-20T23:59:59Z", "2023-11-20 23:59:59", ts} {
		v := Coerce(raw, FieldTypeTimestamp)
		assert.Equal(t, FieldTypeTimestamp, v.Type)
		assert.True(t, v.Time.Equal(ts), "raw %v", raw)
	}
	assert.True(t, Coerce("yesterday", FieldTypeTimestamp).IsEmpty())
}

func TestDocumentFieldSet(t *testing.T) {
	set, err := DocumentFieldSet(map[string]FieldType{
		"cost":   FieldTypeNumber,
		"status": FieldTypeString,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cost", "status"}, set.Keys())

	doc := Document{"cost": 2.5, "status": "active"}
	v, ok := set.Resolve("cost", doc)
	assert.True(t, ok)
	assert.Equal(t, Number(2.5), v)

	v, _ = set.Resolve("status", Document{})
	assert.True(t, v.IsEmpty())
}
