package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEntityNotFound is returned when a fetch or query names an unknown entity.
var ErrEntityNotFound = errors.New("entity not found")

// ErrExecutionConflict is returned when a fetch for an entity is already in
// flight. Callers retry after backoff; the HTTP layer maps it to 409.
var ErrExecutionConflict = errors.New("execution already in progress for entity")

// MissingFieldsError reports required inputs that were absent.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing fields: %s", strings.Join(e.Fields, ", "))
}

// NewMissingFields builds a MissingFieldsError.
func NewMissingFields(fields ...string) *MissingFieldsError {
	return &MissingFieldsError{Fields: fields}
}

// InvalidFieldError reports an input that was present but unusable.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// CalculationInputError reports calculator inputs that cannot produce a
// result (unsolvable scenarios, non-finite intermediates).
type CalculationInputError struct {
	Reason string
}

func (e *CalculationInputError) Error() string {
	return e.Reason
}
