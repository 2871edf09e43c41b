package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFieldSet is returned when field definitions fail validation.
var ErrInvalidFieldSet = errors.New("invalid field set")

// FieldSet is a validated, immutable registry of the logical fields of a
// record type. It is the only way the view pipeline reads record data.
type FieldSet[T any] struct {
	fields map[string]Field[T]
	order  []string
}

// NewFieldSet validates the definitions and builds a FieldSet. Any issue is
// reported as an error wrapping ErrInvalidFieldSet.
func NewFieldSet[T any](fields ...Field[T]) (*FieldSet[T], error) {
	result := NewValidator(fields).Validate()
	if !result.Valid {
		messages := make([]string, 0, len(result.Issues))
		for _, issue := range result.Issues {
			messages = append(messages, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidFieldSet, strings.Join(messages, "; "))
	}

	set := &FieldSet[T]{
		fields: make(map[string]Field[T], len(fields)),
		order:  make([]string, 0, len(fields)),
	}
	for _, field := range fields {
		set.fields[field.Key] = field
		set.order = append(set.order, field.Key)
	}
	return set, nil
}

// MustFieldSet is like NewFieldSet but panics on invalid definitions. It is
// intended for package-level field sets declared at init time.
func MustFieldSet[T any](fields ...Field[T]) *FieldSet[T] {
	set, err := NewFieldSet(fields...)
	if err != nil {
		panic(err)
	}
	return set
}

// Resolve returns the value of the named field on record. The boolean is
// false when the key is not registered; callers decide whether that is fatal.
func (s *FieldSet[T]) Resolve(key string, record T) (Value, bool) {
	field, ok := s.fields[key]
	if !ok {
		return Value{Null: true}, false
	}
	return field.Accessor(record), true
}

// Lookup returns the definition of the named field.
func (s *FieldSet[T]) Lookup(key string) (Field[T], bool) {
	field, ok := s.fields[key]
	return field, ok
}

// Has reports whether the named field is registered.
func (s *FieldSet[T]) Has(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Keys returns the registered field keys in declaration order.
func (s *FieldSet[T]) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Fields returns the registered definitions in declaration order.
func (s *FieldSet[T]) Fields() []Field[T] {
	fields := make([]Field[T], 0, len(s.order))
	for _, key := range s.order {
		fields = append(fields, s.fields[key])
	}
	return fields
}
