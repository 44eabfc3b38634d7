package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrEmptyQuery indicates a retrieve call without query text.
	ErrEmptyQuery = errors.New("empty query")

	// ErrUnsupportedDocument indicates no extractor handles the file type.
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// ErrDocumentTooLarge indicates an attachment over the configured size limit.
	ErrDocumentTooLarge = errors.New("document too large")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable indicates the durable index could not be reached.
	ErrIndexUnavailable = errors.New("durable index unavailable")

	// ErrRateLimited indicates an upstream rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthInvalid indicates upstream credentials are missing or rejected.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrCacheClosed indicates use of a stopped ephemeral cache.
	ErrCacheClosed = errors.New("ephemeral cache closed")
)

// InputError rejects a request before any indexing work is done.
// Reason is safe to show to the user.
type InputError struct {
	// Ref is the document reference as supplied by the caller.
	Ref string

	// Reason describes what is wrong with the input.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// NewInputError creates an InputError for ref.
func NewInputError(ref, reason string, cause error) *InputError {
	return &InputError{Ref: ref, Reason: reason, Err: cause}
}

func (e *InputError) Error() string {
	if e.Ref == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input %q: %s", e.Ref, e.Reason)
}

// Unwrap returns the cause, or ErrInvalidInput when there is none.
func (e *InputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidInput}
	}
	return []error{ErrInvalidInput, e.Err}
}

// UpstreamError is a failure of an external collaborator such as the
// embedding gateway or the durable index. Retryable is decided by the
// adapter that observed the failure.
type UpstreamError struct {
	// Service names the collaborator, e.g. "openai" or "sqlite".
	Service string

	// Op is the operation that failed, e.g. "embed_batch".
	Op string

	// Status is the HTTP status code, or 0 when not applicable.
	Status int

	// Retryable reports whether the same call may succeed later.
	Retryable bool

	// RetryAfter is the server-suggested delay, or 0.
	RetryAfter time.Duration

	// Err is the underlying cause.
	Err error
}

func (e *UpstreamError) Error() string {
	msg := e.Service + ": " + e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClassifyStatus builds an UpstreamError for a non-success HTTP status.
// Auth failures and other client errors are permanent; rate limits and
// server errors are retryable.
func ClassifyStatus(service, op string, status int, retryAfter time.Duration, body string) *UpstreamError {
	e := &UpstreamError{
		Service:    service,
		Op:         op,
		Status:     status,
		RetryAfter: retryAfter,
	}
	switch {
	case status == 401 || status == 403:
		e.Err = fmt.Errorf("%w: %s", ErrAuthInvalid, body)
	case status == 429:
		e.Retryable = true
		e.Err = fmt.Errorf("%w: %s", ErrRateLimited, body)
	case status == 408 || status >= 500:
		e.Retryable = true
		e.Err = errors.New(body)
	default:
		e.Err = errors.New(body)
	}
	return e
}

// IsRetryable reports whether err carries a retryable upstream failure.
func IsRetryable(err error) bool {
	var up *UpstreamError
	if errors.As(err, &up) {
		return up.Retryable
	}
	return false
}

// IsInputError reports whether err rejects the caller's input.
func IsInputError(err error) bool {
	var in *InputError
	return errors.As(err, &in)
}

// IsUpstreamError reports whether err is an external collaborator failure.
func IsUpstreamError(err error) bool {
	var up *UpstreamError
	return errors.As(err, &up)
}

// TransportError wraps a failed round trip to service. Network failures are
// retryable; cancellation by the caller is not.
func TransportError(service, op string, err error) *UpstreamError {
	return &UpstreamError{
		Service:   service,
		Op:        op,
		Retryable: !errors.Is(err, context.Canceled),
		Err:       err,
	}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. It returns 0 when the header is absent or unparseable.
func ParseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := time.Parse(time.RFC1123, header); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
