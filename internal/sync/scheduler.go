package sync

import (
	"context"
	"fmt"
	"log"
	"math"
	stdsync "sync"
	"time"
)

// Policy holds the scheduling constants. They come from configuration,
// not hardcoded business logic; MinDelay <= BaseInterval <= MaxDelay and
// Multiplier > 1 are enforced at config load.
type Policy struct {
	MinDelay     time.Duration
	BaseInterval time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	ErrorCap     uint
	SafetyBuffer time.Duration
}

// Clock abstracts time so scheduler tests inject a fake instead of
// sleeping.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is the armed-once timer handed out by a Clock.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type systemClock struct{}

// SystemClock returns the wall-clock Clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }
func (systemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct{ t *time.Timer }

func (t systemTimer) C() <-chan time.Time { return t.t.C }
func (t systemTimer) Stop() bool          { return t.t.Stop() }

// SyncFunc performs one sync attempt.
type SyncFunc func(ctx context.Context) Outcome

// Recorder receives activity records for the journal.
type Recorder interface {
	Record(kind, detail string)
}

// State is the scheduler's mutable record: initialized at startup,
// mutated only by the scheduler, never persisted.
type State struct {
	InFlight          bool
	ConsecutiveErrors uint
	NextAllowedAt     time.Time
}

// Scheduler is the state machine deciding when the next sync happens.
// It owns its State under a single-writer discipline and guarantees at
// most one sync in flight and exactly one re-arm per completed attempt.
type Scheduler struct {
	policy Policy
	clock  Clock
	sync   SyncFunc
	rec    Recorder

	mu    stdsync.Mutex
	state State
}

func NewScheduler(policy Policy, clock Clock, fn SyncFunc, rec Recorder) *Scheduler {
	if policy.MinDelay <= 0 {
		policy.MinDelay = time.Second
	}
	if policy.BaseInterval < policy.MinDelay {
		policy.BaseInterval = policy.MinDelay
	}
	if policy.MaxDelay < policy.BaseInterval {
		policy.MaxDelay = policy.BaseInterval
	}
	if policy.Multiplier <= 1 {
		policy.Multiplier = 2
	}
	return &Scheduler{policy: policy, clock: clock, sync: fn, rec: rec}
}

// TrySync runs one sync attempt and computes the delay until the next.
// If an attempt is already in flight it is a no-op returning immediately
// with ok=false and no side effects.
func (s *Scheduler) TrySync(ctx context.Context) (next time.Duration, ok bool) {
	s.mu.Lock()
	if s.state.InFlight {
		s.mu.Unlock()
		return 0, false
	}
	s.state.InFlight = true
	s.mu.Unlock()

	out := s.sync(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.InFlight = false
	delay := s.nextDelayLocked(out)
	s.state.NextAllowedAt = s.clock.Now().Add(delay)
	if s.rec != nil {
		s.rec.Record("sync", fmt.Sprintf("%s next=%s errors=%d", out.Kind, delay, s.state.ConsecutiveErrors))
	}
	return delay, true
}

// nextDelayLocked applies the transition algorithm for one outcome.
func (s *Scheduler) nextDelayLocked(out Outcome) time.Duration {
	switch out.Kind {
	case Success:
		s.state.ConsecutiveErrors = 0
		if out.NextAllowedIn > 0 {
			return s.clamp(out.NextAllowedIn + s.policy.SafetyBuffer)
		}
		return s.policy.BaseInterval

	case RateLimited:
		// Rate limiting is expected steady-state behavior, not a fault:
		// the error counter is left untouched. Without a server-stated
		// wait the delay is computed as if this were at least one error.
		log.Printf("[SYNC] rate limited by server (retry-after=%s)", out.RetryAfter)
		if out.RetryAfter > 0 {
			return s.clamp(out.RetryAfter + s.policy.SafetyBuffer)
		}
		return s.backoffLocked(s.state.ConsecutiveErrors + 1)

	case PermanentError:
		s.state.ConsecutiveErrors++
		log.Printf("[SYNC] PERMANENT failure, operator attention required: %v", out.Err)
		// No exponential growth: the condition needs intervention, not
		// patience.
		return s.policy.BaseInterval

	default: // TransientError
		s.state.ConsecutiveErrors++
		log.Printf("[SYNC] transient failure (consecutive=%d): %v", s.state.ConsecutiveErrors, out.Err)
		return s.backoffLocked(s.state.ConsecutiveErrors)
	}
}

// backoffLocked computes BaseInterval * Multiplier^min(n, cap), clamped.
func (s *Scheduler) backoffLocked(n uint) time.Duration {
	exp := n
	if exp > s.policy.ErrorCap {
		exp = s.policy.ErrorCap
	}
	d := time.Duration(float64(s.policy.BaseInterval) * math.Pow(s.policy.Multiplier, float64(exp)))
	if d <= 0 {
		// float overflow
		d = s.policy.MaxDelay
	}
	return s.clamp(d)
}

// clamp bounds a delay into [MinDelay, MaxDelay]; never zero or
// negative, so forward progress is guaranteed.
func (s *Scheduler) clamp(d time.Duration) time.Duration {
	if d > s.policy.MaxDelay {
		return s.policy.MaxDelay
	}
	if d < s.policy.MinDelay {
		return s.policy.MinDelay
	}
	return d
}

// Snapshot returns a copy of the scheduler state.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the repeating timer: attempt, re-arm once, wait. The first
// attempt happens immediately. Stops when ctx is cancelled; an in-flight
// network call is abandoned by its context rather than awaited.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[SYNC] scheduler started (base=%s min=%s max=%s)",
		s.policy.BaseInterval, s.policy.MinDelay, s.policy.MaxDelay)
	for {
		if ctx.Err() != nil {
			log.Println("[SYNC] scheduler stopped")
			return
		}
		delay, ok := s.TrySync(ctx)
		if !ok {
			// Another attempt is in flight; re-arm at the base interval.
			delay = s.policy.BaseInterval
		}
		timer := s.clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("[SYNC] scheduler stopped")
			return
		case <-timer.C():
		}
	}
}
