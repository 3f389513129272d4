package generation

import (
	"context"
	"errors"
	"fmt"
)

// Configuration errors returned by the registry when no usable
// provider can be resolved.
var (
	// ErrNoProvider is returned when no provider is configured for the
	// requested capability.
	ErrNoProvider = errors.New("no generation provider configured")

	// ErrUnknownProvider is returned when the configured provider name
	// does not match any registered implementation.
	ErrUnknownProvider = errors.New("unknown generation provider")

	// ErrProviderUnavailable is returned when the configured provider
	// reports that it is missing the configuration it needs.
	ErrProviderUnavailable = errors.New("generation provider is not available")
)

// ErrorClass partitions provider failures by how the caller should
// react to them.
type ErrorClass string

// Possible error classes. Transient failures (timeouts, rate limits,
// upstream 5xx) are retryable; permanent failures (invalid input,
// content-policy rejection, auth failure) are not. Unknown failures
// are treated as transient with a reduced retry budget.
const (
	ErrorClassTransient ErrorClass = "transient"
	ErrorClassPermanent ErrorClass = "permanent"
	ErrorClassUnknown   ErrorClass = "unknown"
)

// ProviderError is the typed failure every provider call reports.
// It wraps the underlying cause and carries the classification the
// retry policy keys on.
type ProviderError struct {
	// Class is the retryability classification.
	Class ErrorClass

	// Op names the failed operation (e.g. "gemini.generate_text").
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s provider error: %v", e.Op, e.Class, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TransientError wraps err as a retryable provider failure.
func TransientError(op string, err error) *ProviderError {
	return &ProviderError{Class: ErrorClassTransient, Op: op, Err: err}
}

// PermanentError wraps err as a non-retryable provider failure.
func PermanentError(op string, err error) *ProviderError {
	return &ProviderError{Class: ErrorClassPermanent, Op: op, Err: err}
}

// UnknownError wraps err as a failure of unknown retryability.
func UnknownError(op string, err error) *ProviderError {
	return &ProviderError{Class: ErrorClassUnknown, Op: op, Err: err}
}

// Classify returns the error class for a provider call failure.
// Deadline expiry counts as transient (a timed-out call is retried
// within budget); anything not carrying an explicit classification is
// unknown.
func Classify(err error) ErrorClass {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTransient
	}
	return ErrorClassUnknown
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err) == ErrorClassTransient
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	return Classify(err) == ErrorClassPermanent
}
