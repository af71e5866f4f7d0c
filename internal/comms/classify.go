package comms

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a failed remote call.
type Kind int

const (
	// KindTransient covers timeouts, connection failures and 5xx
	// responses. Retried with backoff.
	KindTransient Kind = iota
	// KindRateLimited is an HTTP 429. The server's wait is always honored.
	KindRateLimited
	// KindPermanent covers 400/403/404: a configuration problem that
	// retry alone will not fix.
	KindPermanent
	// KindUnauthorized is an HTTP 401: the presented credential was
	// rejected, typically because it was rotated server-side.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate-limited"
	case KindPermanent:
		return "permanent"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "transient"
	}
}

// CallError is the single failure type produced by every remote call.
type CallError struct {
	Kind       Kind
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s call failure: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s call failure: HTTP %d", e.Kind, e.Status)
}

func (e *CallError) Unwrap() error { return e.Err }

// Classify maps an HTTP status to a CallError, or nil for 2xx. Every
// endpoint call goes through this one function; call sites only decide
// what to do with the resulting kind.
func Classify(status int, header http.Header) *CallError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return &CallError{Kind: KindRateLimited, Status: status, RetryAfter: retryAfter(header)}
	case status == http.StatusUnauthorized:
		return &CallError{Kind: KindUnauthorized, Status: status}
	case status == http.StatusBadRequest, status == http.StatusForbidden, status == http.StatusNotFound:
		return &CallError{Kind: KindPermanent, Status: status}
	default:
		return &CallError{Kind: KindTransient, Status: status}
	}
}

// retryAfter parses a Retry-After header given either as delay-seconds
// or as an HTTP date. Zero means the server gave no usable value.
func retryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
