package xero

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth means the identity endpoint rejected the refresh token or could not be reached.
	// It is fatal for the run; recovery needs a new authorization.
	ErrAuth = errors.New("xero: token refresh failed")
	// ErrRateLimited is returned once the 429 retry budget is spent.
	ErrRateLimited = errors.New("xero: rate limit exceeded")
	// ErrAuthExpired is returned when a request is still unauthorized after a forced refresh.
	ErrAuthExpired = errors.New("xero: unauthorized after token refresh")
	// ErrRequestFailed covers every other failed request.
	ErrRequestFailed = errors.New("xero: request failed")
)

// RequestError carries the response of a non-retryable failed request.
type RequestError struct {
	Resource   string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("xero: %s returned status %d: %s", e.Resource, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}
