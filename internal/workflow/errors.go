package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for the workflow operations. Handlers map these onto
// HTTP statuses (404 / 400); anything else is a database error (500).
var (
	ErrNotFound     = errors.New("loan application not found")
	ErrInvalidState = errors.New("invalid workflow state")
)

// ValidationError reports a malformed or out-of-range input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
