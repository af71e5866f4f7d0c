// Package sync implements the liveness report to the coordination
// service and the adaptive scheduler that decides when to report next.
package sync

import "time"

// OutcomeKind tags the result of one sync attempt.
type OutcomeKind int

const (
	// Success: the server accepted the report. It may carry a suggested
	// next-contact delay and a rotated mining token.
	Success OutcomeKind = iota
	// RateLimited: HTTP 429. Informational, not a fault.
	RateLimited
	// TransientError: timeout, connection failure or 5xx. Retried with
	// exponential backoff.
	TransientError
	// PermanentError: 400/403/404. Needs operator intervention; retried
	// at the base interval with loud logging.
	PermanentError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RateLimited:
		return "rate-limited"
	case PermanentError:
		return "permanent-error"
	default:
		return "transient-error"
	}
}

// Outcome is the classified result of one sync attempt. Produced by
// Client.SyncOnce, consumed only by the Scheduler.
type Outcome struct {
	Kind         OutcomeKind
	ServerStatus string
	// NextAllowedIn is the server-suggested delay until the next sync;
	// zero means the server gave none.
	NextAllowedIn time.Duration
	// RotatedToken is set when the server granted a mining token this
	// cycle. Its absence on success is not a failure; thresholds may
	// simply have been unmet.
	RotatedToken string
	// RetryAfter is the server-stated earliest retry for RateLimited.
	RetryAfter time.Duration
	Err        error
}
