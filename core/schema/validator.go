package schema

import (
	"fmt"
	"strings"
)

// Validator checks a list of field definitions before they are assembled into
// a FieldSet. A malformed definition is a programming error, so every problem
// is reported at once instead of stopping at the first.
type Validator[T any] struct {
	fields []Field[T]
	issues []Issue
}

// NewValidator creates a Validator for the given field definitions.
func NewValidator[T any](fields []Field[T]) *Validator[T] {
	return &Validator[T]{
		fields: fields,
		issues: make([]Issue, 0),
	}
}

// Validate runs all checks and returns the collected result.
func (v *Validator[T]) Validate() ValidationResult {
	v.issues = make([]Issue, 0)
	seen := make(map[string]struct{}, len(v.fields))

	for i, field := range v.fields {
		path := v.buildPath(i, field.Key)

		if strings.TrimSpace(field.Key) == "" {
			v.addIssue("EMPTY_KEY", "field key must not be empty", path)
		} else if _, dup := seen[field.Key]; dup {
			v.addIssue("DUPLICATE_KEY", fmt.Sprintf("field '%s' is defined more than once", field.Key), path)
		}
		seen[field.Key] = struct{}{}

		if !field.Type.IsValid() {
			v.addIssue("INVALID_TYPE", fmt.Sprintf("unsupported field type '%s'", field.Type), path)
		}
		if field.Accessor == nil {
			v.addIssue("NIL_ACCESSOR", "field accessor must not be nil", path)
		}
	}

	return ValidationResult{Valid: len(v.issues) == 0, Issues: v.issues}
}

func (v *Validator[T]) buildPath(index int, key string) string {
	if key == "" {
		return fmt.Sprintf("fields[%d]", index)
	}
	return fmt.Sprintf("fields[%d](%s)", index, key)
}

func (v *Validator[T]) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{
		Code:    code,
		Message: message,
		Path:    path,
	})
}
