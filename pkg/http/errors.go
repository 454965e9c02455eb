package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError represents a non-2xx response.
type HTTPError struct {
	Service    string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return withService(e.Service, fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message))
}

// NetworkError represents a transport-level failure (connection, timeout).
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return withService(e.Service, fmt.Sprintf("network error: %v", e.Err))
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports a 429 or a provider message mentioning a rate limit.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(httpErr.Message)
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit")
}

// IsTimeout reports deadline and gateway timeouts.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusRequestTimeout || httpErr.StatusCode == http.StatusGatewayTimeout
	}
	return false
}

// IsRetryable reports whether repeating the request may succeed.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode == http.StatusRequestTimeout ||
			httpErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// RetryAfterOf returns the server-suggested delay, if any.
func RetryAfterOf(err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}

func withService(service, msg string) string {
	if service == "" {
		return msg
	}
	return service + ": " + msg
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
