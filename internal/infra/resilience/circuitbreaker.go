// Package resilience protects the orchestrator from a component proxy
// that keeps failing: a circuit breaker trips after a run of failures, and
// a QuarantineManager keeps a detector with repeated recorded failures out
// of a growing number of subsequent activities' tuning passes. The two are
// independent: a breaker trip does not record a quarantine failure.
package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/sonata-sse/sse-core/internal/domain"
)

// CBState is a circuit breaker's state.
type CBState int

const (
	Closed CBState = iota
	Open
	HalfOpen
)

func (s CBState) String() string {
	switch s {
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Config bounds one CircuitBreaker.
type Config struct {
	FailureThreshold int           // consecutive failures before tripping
	OpenDuration     time.Duration // how long Open blocks calls before probing
}

// DefaultConfig trips after 3 consecutive failures and stays open 30s.
func DefaultConfig() Config {
	return Config{FailureThreshold: 3, OpenDuration: 30 * time.Second}
}

// CircuitBreaker guards calls to one component proxy. now is injectable
// for deterministic tests.
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu          sync.Mutex
	state       CBState
	failures    int
	openedAt    time.Time
}

// New constructs a CircuitBreaker using time.Now for the clock.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// NewWithClock constructs a CircuitBreaker with an injected clock, for
// deterministic tests.
func NewWithClock(cfg Config, now func() time.Time) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: now}
}

// Allow reports whether a call may proceed. An Open breaker transitions to
// HalfOpen once OpenDuration has elapsed; while HalfOpen, every call is
// allowed through until a recorded outcome closes or re-trips the breaker.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return true
	default: // Open
		if b.now().Sub(b.openedAt) >= b.cfg.OpenDuration {
			b.state = HalfOpen
			return true
		}
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
}

// RecordFailure counts a failure. In Closed, FailureThreshold consecutive
// failures trips to Open. In HalfOpen, a single failure re-trips to Open.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.trip()
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() CBState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// QuarantineManager escalates a detector that keeps failing tune/ack into
// an N-activity quarantine; repeated failures after release double the
// quarantine length, as the teacher's escalating-duration ladder does for
// Cloud-Core-call protection, here repurposed to component-proxy-call
// protection.
type QuarantineManager struct {
	now func() time.Time

	mu         sync.Mutex
	quarantine map[string]*quarantineEntry
}

type quarantineEntry struct {
	activitiesRemaining int
	nextLengthActivities int
}

// NewQuarantineManager constructs an empty manager; quarantine length is counted in activities, not wall-clock
// time, because a quarantined detector must sit out a fixed number of
// subsequent tuning passes regardless of how long those activities take.
func NewQuarantineManager() *QuarantineManager {
	return &QuarantineManager{now: time.Now, quarantine: make(map[string]*quarantineEntry)}
}

// RecordFailure escalates dxName's quarantine: first offense quarantines
// for 1 activity, and each subsequent offense doubles the length up to a
// cap of 8, however long after the previous quarantine ended it occurs.
func (q *QuarantineManager) RecordFailure(dxName string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.quarantine[dxName]
	if !ok {
		e = &quarantineEntry{nextLengthActivities: 1}
		q.quarantine[dxName] = e
	}
	e.activitiesRemaining = e.nextLengthActivities
	if e.nextLengthActivities < 8 {
		e.nextLengthActivities *= 2
	}
}

// IsQuarantined reports whether dxName should be excluded from the next
// tuning pass.
func (q *QuarantineManager) IsQuarantined(dxName string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.quarantine[dxName]
	return ok && e.activitiesRemaining > 0
}

// AdvanceActivity decrements every active quarantine's remaining-activity
// count by one, called once per completed activity.
func (q *QuarantineManager) AdvanceActivity() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.quarantine {
		if e.activitiesRemaining > 0 {
			e.activitiesRemaining--
		}
	}
}

// CheckedCall wraps a fallible operation with the breaker: it refuses the
// call outright if the breaker is Open, and records the outcome otherwise.
func CheckedCall(b *CircuitBreaker, op func() error) error {
	if !b.Allow() {
		return fmt.Errorf("resilience: %w", domain.ErrCircuitOpen)
	}
	if err := op(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
