package query

import "errors"

var (
	// ErrUnknownField is returned in strict mode when a filter, sort, group or
	// summary references a field the record type does not define.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidFilter is returned for malformed filter input such as an
	// unparseable date or an unsupported preset.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidPageSize is returned for a non-positive page size.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrInvalidSort is returned for an unsupported sort direction.
	ErrInvalidSort = errors.New("invalid sort")

	// ErrInvalidGroupMode is returned for an unknown group mode or for a
	// grouped view on a processor without grouping configuration.
	ErrInvalidGroupMode = errors.New("invalid group mode")
)
