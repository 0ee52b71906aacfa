package contacts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrProtected  = errors.New("status is still referenced by contacts")
)

// Messages reported for uniqueness and reference violations.
const (
	MsgDuplicatePhone  = "This phone number is already registered."
	MsgDuplicateEmail  = "This email address is already registered."
	MsgDuplicateStatus = "contact status with this name already exists."
)

// MsgUnknownStatus is the field message for a reference to a missing status.
func MsgUnknownStatus(id int64) string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
}

// FieldError is a validation failure on a single field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries one or more field errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Fields groups messages by field name, in the shape REST clients expect.
func (e *ValidationError) Fields() map[string][]string {
	out := make(map[string][]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}
