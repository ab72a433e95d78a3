package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kinds. Every error returned by HTTPClient and Gateway matches exactly
// one of them with errors.Is.
var (
	ErrAuth        = errors.New("authentication failed")
	ErrNetwork     = errors.New("server unreachable")
	ErrServer      = errors.New("server error")
	ErrRateLimited = errors.New("too many requests")
	ErrRequest     = errors.New("request rejected")

	// ErrSessionExpired is the terminal auth failure after an unrecoverable
	// refresh. Credentials are already purged when it is returned; the caller
	// should route to login.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrAuth)
)

// APIError describes a failed API call. It unwraps to its Kind.
type APIError struct {
	Kind       error
	StatusCode int
	Message    string
	// RetryAfter is set for ErrRateLimited when the server sent Retry-After.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (status %d)", e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// kindForStatus maps a non-2xx HTTP status to an error kind.
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServer
	default:
		return ErrRequest
	}
}

// networkError wraps a transport failure (dial, TLS, timeout, cancelled
// context) so it matches ErrNetwork while keeping the cause.
func networkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
