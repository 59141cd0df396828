// Package invoke wraps fallible external operations (model calls) with error
// classification and bounded exponential backoff. Errors are sorted into three
// classes: fatal (malformed parameters or credentials, never retried),
// retryable (transient infrastructure faults) and unknown (surfaced
// immediately with a distinct message). Terminal failures are reported as a
// single *Error carrying the original error and attempt counts; callers above
// the worker/evaluator boundary must never see it escape.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Class is the retry classification of an error.
type Class int

const (
	// ClassUnknown marks errors that could not be classified; they are not
	// retried and are surfaced with a distinct message.
	ClassUnknown Class = iota
	// ClassRetryable marks transient infrastructure faults (rate limiting,
	// connection failures, upstream 5xx).
	ClassRetryable
	// ClassFatal marks errors that can never succeed on retry (bad
	// parameters, bad credentials).
	ClassFatal
)

// String returns the lower-case class name.
func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ProviderError represents an error returned by an LLM provider, classified
// from its HTTP status code.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
	Class      Class
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, class=%s)", e.Provider, e.Message, e.StatusCode, e.Class)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.Cause }

// WrapStatus builds a ProviderError from an HTTP status code using the
// standard classification table: 400/401/403/404/413/422 are fatal,
// 408/429/5xx are retryable, everything else is unknown.
func WrapStatus(provider string, statusCode int, cause error) *ProviderError {
	msg := "provider request failed"
	if cause != nil {
		msg = cause.Error()
	}
	pe := &ProviderError{Provider: provider, StatusCode: statusCode, Message: msg, Cause: cause}
	switch {
	case statusCode == 400, statusCode == 401, statusCode == 403, statusCode == 404,
		statusCode == 413, statusCode == 422:
		pe.Class = ClassFatal
	case statusCode == 408, statusCode == 429, statusCode >= 500:
		pe.Class = ClassRetryable
	default:
		pe.Class = ClassUnknown
	}
	return pe
}

// classifiedError attaches an explicit class to an arbitrary error.
type classifiedError struct {
	cause error
	class Class
}

func (e *classifiedError) Error() string { return e.cause.Error() }

func (e *classifiedError) Unwrap() error { return e.cause }

// Retryable marks err as a transient fault safe to retry.
func Retryable(err error) error { return &classifiedError{cause: err, class: ClassRetryable} }

// Fatal marks err as permanently failing; it is surfaced without retries.
func Fatal(err error) error { return &classifiedError{cause: err, class: ClassFatal} }

// Classify determines the retry class of err. Provider errors carry their own
// class; network faults and timeouts are retryable; everything else is
// unknown.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassRetryable
	}

	return ClassUnknown
}

// Error is the single terminal failure type raised by the retry layer. It
// carries the human message, the original error, and how many attempts were
// made out of how many were allowed.
type Error struct {
	Message     string
	Err         error
	Attempt     int
	MaxAttempts int
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (attempt %d/%d)", e.Message, e.Attempt, e.MaxAttempts)
	if e.Err != nil {
		msg += fmt.Sprintf(": %T: %v", e.Err, e.Err)
	}
	return msg
}

// Unwrap returns the original error.
func (e *Error) Unwrap() error { return e.Err }

// CauseType returns the type name of the original error, or "unknown" when
// absent. Used to build user-visible failure notices.
func (e *Error) CauseType() string {
	if e.Err == nil {
		return "unknown"
	}
	return fmt.Sprintf("%T", e.Err)
}
