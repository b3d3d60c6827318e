package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// ErrorKind is the fixed failure taxonomy. Every raw provider error is
// reclassified into exactly one kind before it leaves the gateway.
type ErrorKind string

const (
	KindInvalidAPIKey       ErrorKind = "INVALID_API_KEY"
	KindRateLimitExceeded   ErrorKind = "RATE_LIMIT_EXCEEDED"
	KindModelNotFound       ErrorKind = "MODEL_NOT_FOUND"
	KindTimeout             ErrorKind = "TIMEOUT"
	KindProviderError       ErrorKind = "PROVIDER_ERROR"
	KindClientError         ErrorKind = "CLIENT_ERROR"
	KindEmptyResponse       ErrorKind = "EMPTY_RESPONSE"
	KindNoProviderAvailable ErrorKind = "NO_PROVIDER_AVAILABLE"
	KindMaxRetriesExceeded  ErrorKind = "MAX_RETRIES_EXCEEDED"
)

// ProviderError is a normalized provider failure. Derived once from the
// raw error and never mutated afterwards.
type ProviderError struct {
	Kind       ErrorKind
	Message    string
	HTTPStatus int
	Retryable  bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewProviderError builds a ProviderError for the given kind with the
// taxonomy's retryability bit and HTTP-status equivalent.
func NewProviderError(kind ErrorKind, message string) *ProviderError {
	return &ProviderError{
		Kind:       kind,
		Message:    message,
		HTTPStatus: kindHTTPStatus(kind),
		Retryable:  kindRetryable(kind),
	}
}

// HTTPError is a transport-level failure carrying the upstream status.
// Provider adapters wrap vendor SDK and raw HTTP failures into this type
// so classification never depends on vendor error shapes.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// Classify derives a ProviderError from a raw error. Predicates run in
// order: already-classified errors pass through, then status codes, then
// message substrings.
func Classify(err error) *ProviderError {
	if err == nil {
		return nil
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(KindTimeout, "no terminal chunk within deadline")
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.Status, httpErr.Message)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "api key", "unauthorized", "authentication", "401", "403"):
		return NewProviderError(KindInvalidAPIKey, err.Error())
	case containsAny(msg, "rate limit", "quota", "429", "resource_exhausted", "overloaded"):
		return NewProviderError(KindRateLimitExceeded, err.Error())
	case containsAny(msg, "model") && containsAny(msg, "not found", "404", "unknown"):
		return NewProviderError(KindModelNotFound, err.Error())
	case containsAny(msg, "timeout", "deadline"):
		return NewProviderError(KindTimeout, err.Error())
	default:
		return NewProviderError(KindProviderError, err.Error())
	}
}

func classifyStatus(status int, message string) *ProviderError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(KindInvalidAPIKey, message)
	case status == http.StatusTooManyRequests:
		return NewProviderError(KindRateLimitExceeded, message)
	case status == http.StatusNotFound:
		return NewProviderError(KindModelNotFound, message)
	case status >= 500:
		return NewProviderError(KindProviderError, message)
	case status >= 400:
		return NewProviderError(KindClientError, message)
	default:
		return NewProviderError(KindProviderError, message)
	}
}

func kindRetryable(kind ErrorKind) bool {
	switch kind {
	case KindRateLimitExceeded, KindTimeout, KindProviderError, KindEmptyResponse:
		return true
	default:
		return false
	}
}

func kindHTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindInvalidAPIKey:
		return http.StatusUnauthorized
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindModelNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNoProviderAvailable:
		return http.StatusServiceUnavailable
	case KindClientError:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
