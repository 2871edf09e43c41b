package schema

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timestampLayouts are tried in order when a timestamp arrives as text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ToFloat64 converts a value of various numeric types to a float64. It returns
// the converted value and whether the conversion was successful.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case decimal.Decimal:
		return val.InexactFloat64(), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseTimestamp parses the textual timestamp formats records commonly carry.
// Date-only and zone-less values are interpreted in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Coerce converts a raw document value into a Value of the requested type.
// Missing or unconvertible data yields the empty sentinel.
func Coerce(raw any, t FieldType) Value {
	if raw == nil {
		return Empty(t)
	}

	switch t {
	case FieldTypeNumber:
		if f, ok := ToFloat64(raw); ok {
			return Number(f)
		}
		return Empty(t)
	case FieldTypeTimestamp:
		switch val := raw.(type) {
		case time.Time:
			return Timestamp(val)
		case string:
			if parsed, err := ParseTimestamp(val); err == nil {
				return Timestamp(parsed)
			}
		case int64:
			return Timestamp(time.Unix(val, 0).UTC())
		}
		return Empty(t)
	default:
		switch val := raw.(type) {
		case string:
			return String(val)
		case fmt.Stringer:
			return String(val.String())
		default:
			if f, ok := ToFloat64(val); ok {
				return String(strconv.FormatFloat(f, 'f', -1, 64))
			}
			return String(fmt.Sprintf("%v", val))
		}
	}
}

// DocumentField declares a field read from a Document key of the same name.
func DocumentField(key string, t FieldType) Field[Document] {
	return Field[Document]{
		Key:  key,
		Type: t,
		Accessor: func(doc Document) Value {
			return Coerce(doc[key], t)
		},
	}
}

// DocumentFieldSet builds a FieldSet over Documents from a key to type map.
// Keys are registered in sorted order so the result is deterministic.
func DocumentFieldSet(types map[string]FieldType) (*FieldSet[Document], error) {
	keys := make([]string, 0, len(types))
	for key := range types {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	fields := make([]Field[Document], 0, len(keys))
	for _, key := range keys {
		fields = append(fields, DocumentField(key, types[key]))
	}
	return NewFieldSet(fields...)
}
