package fetcher

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrHTTPStatus is wrapped by FetchError when the server answered with a 4xx or 5xx status.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrTooManyRedirects is returned when a URL redirects more than the configured cap.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrInvalidRequest is returned when a request cannot be built for the URL.
	ErrInvalidRequest = errors.New("invalid request")
)

// FetchError describes why a URL could not be fetched.
//
// Transient errors (timeouts, 5xx, 429, reset connections) were retried up
// to the retry budget before being returned. Permanent errors (other 4xx,
// unknown hosts, redirect loops) are returned after the first attempt.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int

	// Transient reports whether the failure class is retryable.
	Transient bool

	// Attempts is the number of requests made, including the first one.
	Attempts int

	// RetryAfter is the delay the server asked for, if any.
	RetryAfter time.Duration

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s failure after %d attempt(s): status %d", e.URL, class, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s failure after %d attempt(s): %v", e.URL, class, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transient FetchError.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
