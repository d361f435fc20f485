package orchestrator

import "sync"

// reconnectManager tracks explicit start/stop "intent" per tunnel id so
// that a circuit-breaker-triggered failover does not fight a user-issued
// stop(), grounded on the teacher's internal/service/reconnect.go intent
// map (SetIntent / intentMap pattern), simplified here to a single engine
// instance instead of a multi-tunnel registry.
type reconnectManager struct {
	mu     sync.Mutex
	intent bool // true: engine should be running; false: user asked to stop
}

func newReconnectManager() *reconnectManager {
	return &reconnectManager{}
}

// SetIntent records whether the engine is meant to be running.
func (r *reconnectManager) SetIntent(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intent = running
}

// ShouldAutoRecover reports whether a failure-driven recovery action
// (failover, reconnect) is consistent with current intent — i.e. the user
// has not explicitly stopped the engine since.
func (r *reconnectManager) ShouldAutoRecover() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intent
}
