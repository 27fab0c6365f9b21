// package models defines the data model for the playlist sync store
package models

import (
	"errors"
	"fmt"
)

// ErrModelViolation is matched by every error reporting entity data that contradicts the model,
// such as a missing owner or an unknown playlist kind.
var ErrModelViolation = errors.New("model violation")

// Model defines the base interface for all persistent entities.
type Model interface {
	Validate() error // Validate checks the entity against the model and returns an error if it is invalid
}

// ViolationError names the entity and field that broke the model.
type ViolationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%v: %s.%s %s", ErrModelViolation, e.Entity, e.Field, e.Reason)
}

func (e *ViolationError) Unwrap() error {
	return ErrModelViolation
}

// Violation returns a [ViolationError] for entity.field.
func Violation(entity, field, reason string) error {
	return &ViolationError{Entity: entity, Field: field, Reason: reason}
}
