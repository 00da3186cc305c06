package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the base error for rejected entity input.
// Every ValidationError matches it with errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError describes one invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
