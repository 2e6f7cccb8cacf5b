package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrUnknownMake         = errors.New("unknown make")
	ErrInvalidPriceRange   = errors.New("invalid price range")
	ErrProviderUnavailable = errors.New("vehicle data provider unavailable")
	ErrNoListings          = errors.New("no listings could be loaded")
	ErrCatalogDegraded     = errors.New("catalog incomplete while provider unavailable")
	ErrSearchSuperseded    = errors.New("search superseded by a newer search")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
