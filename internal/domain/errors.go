// Package domain defines core types, interfaces, and errors for the CRM backend.
package domain

import (
	"fmt"
	"strings"
)

// NotFoundError indicates a resource was not found. Ownership failures are
// reported as NotFoundError too, so callers cannot distinguish "exists but
// belongs to another tenant" from "does not exist".
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates a missing or insufficient principal.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input described by a single message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ValidationErrors carries the ordered list of violations produced by the
// validation engine. All violations for a payload are collected and returned
// together, never partially.
type ValidationErrors struct {
	Violations []string
}

func (e *ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// StructuralError indicates a payload that is not parseable or not a flat
// JSON object. Distinct from field-level validation failures.
type StructuralError struct {
	Message string
}

func (e *StructuralError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource) reported by
// the store's own constraints.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrStructural creates a StructuralError with a formatted message.
func ErrStructural(format string, args ...interface{}) *StructuralError {
	return &StructuralError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}
