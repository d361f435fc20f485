package fingerprint

import (
	"math/rand/v2"
	"sync"
)

// defaultRotationInterval is the number of rotate() calls between actual
// fingerprint changes, per spec.md §4.9.
const defaultRotationInterval = 100

// Manager wraps a Registry with weighted rotation: rotate() increments an
// internal counter, and every rotationInterval calls a new fingerprint is
// drawn by weighted random selection.
type Manager struct {
	registry         *Registry
	rotationInterval int
	rng              *rand.Rand

	mu      sync.Mutex
	counter int
	current Fingerprint
}

// NewManager creates a Fingerprint Manager over the given registry and
// selects an initial fingerprint.
func NewManager(registry *Registry, rng *rand.Rand) *Manager {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	m := &Manager{
		registry:         registry,
		rotationInterval: defaultRotationInterval,
		rng:              rng,
	}
	m.current = registry.WeightedPick(rng)
	return m
}

// SetRotationInterval overrides the default rotation cadence.
func (m *Manager) SetRotationInterval(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.rotationInterval = n
	}
}

// Current returns the currently selected fingerprint.
func (m *Manager) Current() Fingerprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Rotate increments the call counter; every rotationInterval calls it draws
// a new fingerprint and returns true (a rotation happened). Otherwise it
// returns false and leaves Current() unchanged.
func (m *Manager) Rotate() (Fingerprint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	if m.counter < m.rotationInterval {
		return m.current, false
	}

	m.counter = 0
	m.current = m.registry.WeightedPick(m.rng)
	return m.current, true
}

// ForceRotate immediately draws a new fingerprint and resets the counter,
// used by the orchestrator after a handshake-rejection error.
func (m *Manager) ForceRotate() Fingerprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter = 0
	m.current = m.registry.WeightedPick(m.rng)
	return m.current
}
