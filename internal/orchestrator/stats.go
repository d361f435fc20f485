package orchestrator

import (
	"sync"
	"time"

	"duskline/internal/core"
)

// statsSnapshot is a read-only point-in-time copy of the Tunnel State
// counters, exposed independent of the event bus for a future external
// status surface, grounded on the teacher's
// internal/service/stats_collector.go StatsSnapshot/Subscribe pattern —
// simplified here to a single getter rather than a channel-subscription
// fan-out, since the Orchestration Engine already owns one event bus for
// that purpose.
type statsSnapshot struct {
	mu    sync.RWMutex
	state core.TunnelState
	at    time.Time
}

func newStatsSnapshot() *statsSnapshot {
	return &statsSnapshot{}
}

// Publish stores a copy of state as the latest snapshot.
func (s *statsSnapshot) Publish(state core.TunnelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.at = time.Now()
}

// Latest returns the most recently published snapshot.
func (s *statsSnapshot) Latest() (core.TunnelState, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.at
}
