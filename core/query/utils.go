package query

import (
	"fmt"
	"slices"
	"time"

	"github.com/asaidimu/go-tabula/core/schema"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EngineOptions carries the ambient inputs shared by the engines. The zero
// value is usable: lenient mode, UTC, a no-op logger and the wall clock.
type EngineOptions struct {
	// Strict makes references to unknown fields fail with ErrUnknownField.
	// When false they are logged and resolve to the empty sentinel.
	Strict bool

	// Now is the reference instant for relative date presets.
	Now time.Time

	// Location is the calendar used to interpret absolute dates.
	Location *time.Location

	Logger *zap.Logger
}

func (o EngineOptions) normalized() EngineOptions {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// checkField verifies that key is defined. In lenient mode an unknown key is
// logged and reported as usable; every later Resolve yields the sentinel.
func checkField[T any](fields *schema.FieldSet[T], key, role string, opts EngineOptions) error {
	if fields.Has(key) {
		return nil
	}
	if opts.Strict {
		return fmt.Errorf("%s field '%s': %w", role, key, ErrUnknownField)
	}
	opts.Logger.Warn("Unknown field referenced, treating values as empty",
		zap.String("field", key), zap.String("role", role))
	return nil
}

// toDecimal converts a resolved value into an exact decimal for aggregation.
// The empty sentinel and non-numeric text contribute zero.
func toDecimal(v schema.Value) decimal.Decimal {
	if v.Null {
		return decimal.Zero
	}
	switch v.Type {
	case schema.FieldTypeNumber:
		return decimal.NewFromFloat(v.Num)
	case schema.FieldTypeString:
		if d, err := decimal.NewFromString(v.Str); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// IsOfferedPageSize reports whether size is one of PageSizes.
func IsOfferedPageSize(size int) bool {
	return slices.Contains(PageSizes, size)
}
