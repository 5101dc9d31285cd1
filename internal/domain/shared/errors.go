package shared

import (
	"context"
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrCanceled     = NewDomainError("CANCELED", "Operation was canceled")
)

// InvalidInput returns an error that matches ErrInvalidInput and carries a detail message.
func InvalidInput(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, detail)
}

// NotFound returns an error that matches ErrNotFound and carries a detail message.
func NotFound(detail string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, detail)
}

// Canceled wraps a context error so that it matches both ErrCanceled and the
// original context cause.
func Canceled(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// CheckContext returns a Canceled error when ctx is done, nil otherwise.
func CheckContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Canceled(err)
	}
	return nil
}

// ContextError returns err unchanged unless ctx is done, in which case a
// Canceled error wrapping both the context cause and err is returned. Use it
// on errors from queries that were interrupted by the context.
func ContextError(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrCanceled) {
		return err
	}
	if cause := ctx.Err(); cause != nil {
		return fmt.Errorf("%w: %w: %w", ErrCanceled, cause, err)
	}
	return err
}

// IsCanceled reports whether err is a cancellation outcome.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
