// Package crawlerr defines the tagged error model shared by every layer
// of the crawl pipeline. Retry and circuit-breaker decisions consult the
// Kind and Retryable fields only; they never match on message text.
package crawlerr

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a closed set of error categories. New kinds are added here, not
// invented ad hoc at call sites.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindCategoryNotFound    Kind = "category_not_found"
	KindCategoryInvalid     Kind = "category_invalid"
	KindGoogleNewsUnavail   Kind = "google_news_unavailable"
	KindRateLimitExceeded   Kind = "rate_limit_exceeded"
	KindExtractionTimeout   Kind = "extraction_timeout"
	KindExtractionNetwork   Kind = "extraction_network"
	KindExtractionParsing   Kind = "extraction_parsing"
	KindDatabaseConnection  Kind = "database_connection"
	KindCircuitBreakerOpen  Kind = "circuit_breaker_open"
	KindInternal            Kind = "internal"
)

// defaultRetryAfter mirrors the Python original's per-kind defaults
// (shared/exceptions.py), used when a call site doesn't override it.
var defaultRetryAfter = map[Kind]time.Duration{
	KindGoogleNewsUnavail:  300 * time.Second,
	KindRateLimitExceeded:  60 * time.Second,
	KindDatabaseConnection: 30 * time.Second,
}

var retryableKinds = map[Kind]bool{
	KindGoogleNewsUnavail:  true,
	KindRateLimitExceeded:  true,
	KindExtractionTimeout:  true,
	KindExtractionNetwork:  true,
	KindDatabaseConnection: true,
	KindCircuitBreakerOpen: true,
}

// Error is the tagged error type propagated across every package boundary
// in the pipeline in place of ad hoc fmt.Errorf chains.
type Error struct {
	Kind       Kind
	Message    string
	Details    map[string]interface{}
	Retryable  bool
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with the kind's default retryability and retry_after.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:       kind,
		Message:    message,
		Retryable:  retryableKinds[kind],
		RetryAfter: defaultRetryAfter[kind],
		Details:    map[string]interface{}{},
	}
}

// Wrap annotates an underlying error with a kind, preserving it as Cause.
func Wrap(kind Kind, cause error, message string) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// WithRetryAfter overrides the default retry_after, e.g. from a
// server-provided hint such as a Retry-After header or rate-limit signal.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// WithDetails merges key/value pairs into the error's structured details.
func (e *Error) WithDetails(kv map[string]interface{}) *Error {
	for k, v := range kv {
		e.Details[k] = v
	}
	return e
}

// As extracts a *Error from err, following the standard errors.As protocol.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, else
// KindInternal — callers outside this package must never infer kind from
// err.Error() text.
func KindOf(err error) Kind {
	if ce, ok := As(err); ok {
		return ce.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err should be retried, consulting only the
// tagged Retryable flag (defaulting to false for untagged errors).
func IsRetryable(err error) bool {
	ce, ok := As(err)
	return ok && ce.Retryable
}

// RetryAfterOf returns the retry-after hint carried by err, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	ce, ok := As(err)
	if !ok || ce.RetryAfter <= 0 {
		return 0, false
	}
	return ce.RetryAfter, true
}
