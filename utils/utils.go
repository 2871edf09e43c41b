// Package utils decodes the generic documents read from SQLite into record
// structs. Decoding goes through the record's JSON encoding, so json tags
// decide the document keys and time.Time values travel as RFC 3339.
package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// MapToStruct decodes doc into a new T. Documents read straight from a
// database decode too: time.Time values, int64 and float64 all land in the
// matching field types.
func MapToStruct[T any](doc map[string]any) (T, error) {
	var zero T
	if doc == nil {
		return zero, errors.New("document cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("target must be a struct type, got %v", typ)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("failed to encode document: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}

// MapsToStructs decodes every document, reporting the index of the first
// one that fails.
func MapsToStructs[T any, M ~map[string]any](docs []M) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, doc := range docs {
		record, err := MapToStruct[T](map[string]any(doc))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, record)
	}
	return out, nil
}
