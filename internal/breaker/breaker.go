// Package breaker implements the Circuit Breaker from spec.md §4.7, grounded
// on the teacher's internal/service/health_monitor.go staleness-counter
// pattern (a periodic check that flips a tunnel to Error state after
// crossing a threshold), generalized here into an explicit 3-state machine.
package breaker

import (
	"sync"
	"time"
)

// State is one of the circuit breaker's three states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the breaker's tunable thresholds.
type Config struct {
	Threshold   int
	OpenTimeout time.Duration
	MaxLatency  time.Duration
}

// Breaker is a circuit breaker over a single tunnel's recent latency
// samples. Closed → Open when the failure count reaches Threshold; Open →
// HalfOpen once OpenTimeout has elapsed since the last failure; HalfOpen →
// Closed on a recorded success; HalfOpen → Open on any further failure.
type Breaker struct {
	mu          sync.Mutex
	cfg         Config
	state       State
	failures    int
	lastFailure time.Time
}

// New creates a Breaker in the Closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// State returns the breaker's current state, first promoting Open to
// HalfOpen if OpenTimeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promoteLocked()
	return b.state
}

func (b *Breaker) promoteLocked() {
	if b.state == Open && time.Since(b.lastFailure) >= b.cfg.OpenTimeout {
		b.state = HalfOpen
	}
}

// ShouldTrip records a latency sample. If latency exceeds MaxLatency it
// increments the failure count and, in HalfOpen, immediately reopens the
// circuit. It returns whether the circuit is open (failure count has
// reached Threshold, or the breaker was already Open/HalfOpen-and-failing).
func (b *Breaker) ShouldTrip(latency time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promoteLocked()

	if latency <= b.cfg.MaxLatency {
		return b.state == Open
	}

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case HalfOpen:
		b.state = Open
	case Closed:
		if b.failures >= b.cfg.Threshold {
			b.state = Open
		}
	}

	return b.state == Open
}

// RecordSuccess clears the failure count and forces the breaker Closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = Closed
}

// Failures returns the current failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
