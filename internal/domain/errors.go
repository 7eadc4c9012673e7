package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors
var (
	ErrNotFound     = errors.New("entity not found")
	ErrUnknownField = errors.New("unknown field")
)

// IsNotFound checks if an error is a not-found type error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidationError carries per-field rule violations. It is raised before
// any write, so it never leaves partial state behind.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates an empty validation error.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a violation message for a field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ErrOrNil returns the error itself when violations exist, nil otherwise.
func (e *ValidationError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// AsValidationError checks if an error is a validation error and unwraps it.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
