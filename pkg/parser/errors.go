package parser

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a parse failure.
type ErrorKind string

// Parse error kinds.
const (
	// ErrInvalidSource marks malformed input, optionally at a byte offset.
	ErrInvalidSource ErrorKind = "invalid_source"
	// ErrUnsupported marks input using a feature the parser does not handle.
	ErrUnsupported ErrorKind = "unsupported"
	// ErrInternal marks a defect inside the parser itself.
	ErrInternal ErrorKind = "internal"
)

// Error is a per-file parse failure. Offset is the byte position of the
// problem when known, else -1.
type Error struct {
	Kind    ErrorKind
	Message string
	Offset  int64
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at byte %d: %s", e.Kind, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches parse errors by kind.
func (e *Error) Is(target error) bool {
	var pe *Error
	if !errors.As(target, &pe) {
		return false
	}
	return pe.Kind == "" || pe.Kind == e.Kind
}

// InvalidSource creates an invalid-source error at offset (-1 if unknown).
func InvalidSource(message string, offset int64) *Error {
	return &Error{Kind: ErrInvalidSource, Message: message, Offset: offset}
}

// Unsupported creates an unsupported-feature error.
func Unsupported(feature string) *Error {
	return &Error{Kind: ErrUnsupported, Message: feature, Offset: -1}
}

// Internal creates an internal parser error.
func Internal(reason string) *Error {
	return &Error{Kind: ErrInternal, Message: reason, Offset: -1}
}
