package core

import (
	"errors"
	"fmt"
)

// ValidationError reports a create/update payload that cannot be stored.
// The message is safe to return to clients as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrDescriptionRequired = &ValidationError{Message: "description is required"}
	ErrAmountRequired      = &ValidationError{Message: "valid amount is required"}
	ErrInvalidDate         = &ValidationError{Message: "invalid date format"}
)

// ErrNotFound is returned when no expense has the requested id.
var ErrNotFound = errors.New("expense not found")

// InvalidIdentifierError is returned for ids that are not 24 hex characters.
type InvalidIdentifierError struct {
	ID string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid expense id %q", e.ID)
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidIdentifier reports whether err carries an InvalidIdentifierError.
func IsInvalidIdentifier(err error) bool {
	var ie *InvalidIdentifierError
	return errors.As(err, &ie)
}
