// Package schema defines the field model that the view pipeline uses to read
// records. A record is any Go value; the pipeline never inspects it directly,
// it resolves named logical fields through caller-supplied accessors that
// return comparable Values.
package schema

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// FieldType represents the comparable kinds a field can resolve to.
type FieldType string

const (
	FieldTypeString    FieldType = "string"    // Compared by code point, case-sensitive
	FieldTypeNumber    FieldType = "number"    // Compared numerically
	FieldTypeTimestamp FieldType = "timestamp" // Compared by instant
)

// IsValid reports whether t is one of the supported field types.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeTimestamp:
		return true
	}
	return false
}

// Value is the comparable result of resolving a field on a record. Exactly one
// of Str, Num or Time is meaningful, selected by Type. A Value with Null set is
// the empty sentinel: it sorts before every defined value in ascending order.
type Value struct {
	Type FieldType `json:"type"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	Time time.Time `json:"time,omitempty"`
	Null bool      `json:"null,omitempty"`
}

// String creates a string Value.
func String(s string) Value {
	return Value{Type: FieldTypeString, Str: s}
}

// Number creates a numeric Value. NaN is normalized to the empty sentinel so
// that ordering stays total.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Empty(FieldTypeNumber)
	}
	return Value{Type: FieldTypeNumber, Num: f}
}

// Timestamp creates a timestamp Value. The zero time is treated as absent.
func Timestamp(t time.Time) Value {
	if t.IsZero() {
		return Empty(FieldTypeTimestamp)
	}
	return Value{Type: FieldTypeTimestamp, Time: t}
}

// Empty returns the empty sentinel for the given field type.
func Empty(t FieldType) Value {
	return Value{Type: t, Null: true}
}

// IsEmpty reports whether v is the empty sentinel.
func (v Value) IsEmpty() bool {
	return v.Null
}

// String renders the value the way it is matched by text search and written
// to exports: numbers in their shortest form, timestamps as RFC 3339, and the
// empty sentinel as "".
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case FieldTypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case FieldTypeTimestamp:
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return v.Str
	}
}

// Compare returns -1, 0 or 1 ordering v against o. The empty sentinel comes
// first. Values of different types fall back to comparing their string forms,
// which only happens when an accessor disagrees with its declared type.
func (v Value) Compare(o Value) int {
	switch {
	case v.Null && o.Null:
		return 0
	case v.Null:
		return -1
	case o.Null:
		return 1
	}

	if v.Type != o.Type {
		return strings.Compare(v.String(), o.String())
	}

	switch v.Type {
	case FieldTypeNumber:
		switch {
		case v.Num < o.Num:
			return -1
		case v.Num > o.Num:
			return 1
		}
		return 0
	case FieldTypeTimestamp:
		return v.Time.Compare(o.Time)
	default:
		return strings.Compare(v.Str, o.Str)
	}
}

// Accessor resolves one logical field on a record. It must be pure and total:
// when the underlying data is missing it returns the empty sentinel rather
// than panicking.
type Accessor[T any] func(record T) Value

// Field describes a named logical field of a record type.
type Field[T any] struct {
	Key      string      `json:"key"`
	Type     FieldType   `json:"type"`
	Label    string      `json:"label,omitempty"`
	Accessor Accessor[T] `json:"-"`
}

// Document is a loosely structured record, as decoded from JSON or read from a
// database row.
type Document map[string]any

// Issue represents a validation problem found in a field definition.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// ValidationResult collects the outcome of validating a set of fields.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}
