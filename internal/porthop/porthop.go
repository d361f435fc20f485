// Package porthop implements the Port Hopper from spec.md §4.8, grounded on
// the teacher's internal/service/stats_collector.go moving-average pattern
// (for per-port latency/score bookkeeping) and internal/service/reconnect.go
// (for the interval-gated "should we act now" check this package's
// ShouldHop mirrors). Hop pacing is rate-limited with golang.org/x/time/rate
// so that a burst of failover-driven hop requests cannot exceed hop_interval
// cadence even under the 60-second periodic task described in spec.md §5.
package porthop

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Strategy selects which port to hop to next.
type Strategy int

const (
	Sequential Strategy = iota
	Random
	Weighted
	LatencyBased
	Adaptive
)

func ParseStrategy(s string) Strategy {
	switch s {
	case "sequential":
		return Sequential
	case "random":
		return Random
	case "weighted":
		return Weighted
	case "latency_based", "latencybased":
		return LatencyBased
	default:
		return Adaptive
	}
}

// PortState tracks the health of one port in the pool.
type PortState struct {
	Port       int
	Active     bool
	AvgLatency time.Duration
	SuccessCnt int
	ErrorCnt   int
	LastUsed   time.Time
}

// Score returns 0.6·success_rate + 0.4·latency_score, matching spec.md §3's
// Port State definition. A port with no samples at all (success_count =
// error_count = 0) scores exactly 0.5: neither proven good nor proven bad.
func (p *PortState) Score() float64 {
	total := p.SuccessCnt + p.ErrorCnt
	successRate := 0.5
	if total > 0 {
		successRate = float64(p.SuccessCnt) / float64(total)
	}
	return 0.6*successRate + 0.4*latencyScore(p.AvgLatency, total)
}

// latencyScore is neutral (0.5) when there is no latency sample yet
// (total == 0, so AvgLatency's zero value is "unknown" rather than "0ms").
func latencyScore(d time.Duration, total int) float64 {
	if total == 0 {
		return 0.5
	}
	ms := d.Milliseconds()
	switch {
	case ms < 100:
		return 1.0
	case ms < 200:
		return 0.7
	case ms < 300:
		return 0.4
	default:
		return 0.1
	}
}

// recordLatency folds a new sample into the running average via simple
// exponential smoothing.
func (p *PortState) recordLatency(d time.Duration) {
	if p.AvgLatency == 0 {
		p.AvgLatency = d
		return
	}
	p.AvgLatency = time.Duration(0.8*float64(p.AvgLatency) + 0.2*float64(d))
}

// Hopper holds the pool of port states and picks the next port to use.
type Hopper struct {
	mu       sync.Mutex
	pool     []*PortState
	current  int // index into pool
	strategy Strategy
	interval time.Duration
	lastHop  time.Time
	limiter  *rate.Limiter
	rng      func() float64
}

// New creates a Hopper over the given port pool.
func New(pool []int, strategy Strategy, hopInterval time.Duration) *Hopper {
	states := make([]*PortState, len(pool))
	for i, p := range pool {
		states[i] = &PortState{Port: p, Active: true}
	}
	return &Hopper{
		pool:     states,
		strategy: strategy,
		interval: hopInterval,
		lastHop:  time.Now(),
		limiter:  rate.NewLimiter(rate.Every(hopInterval), 1),
		rng:      mrand,
	}
}

// ShouldHop returns true once hop_interval has elapsed since the last hop.
func (h *Hopper) ShouldHop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Since(h.lastHop) >= h.interval
}

// RecordResult folds a connection attempt outcome into the current port's
// state, deactivating it when error_count > 10 and success_count <
// error_count/2.
func (h *Hopper) RecordResult(success bool, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.pool[h.current]
	if success {
		p.SuccessCnt++
		p.recordLatency(latency)
	} else {
		p.ErrorCnt++
	}
	if p.ErrorCnt > 10 && p.SuccessCnt < p.ErrorCnt/2 {
		p.Active = false
	}
}

// Current returns the active port.
func (h *Hopper) Current() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pool[h.current].Port
}

// Hop selects and switches to the next port per the configured strategy,
// gated by the rate limiter so rapid failover-triggered calls cannot
// exceed hop_interval cadence. Returns the new port and whether a hop
// actually occurred (false if the limiter denied it or no active ports
// besides the current one exist).
func (h *Hopper) Hop() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.limiter.Allow() {
		return h.pool[h.current].Port, false
	}

	next := h.selectLocked()
	if next < 0 {
		return h.pool[h.current].Port, false
	}

	h.current = next
	h.pool[h.current].LastUsed = time.Now()
	h.lastHop = time.Now()
	return h.pool[h.current].Port, true
}

func (h *Hopper) selectLocked() int {
	cur := h.pool[h.current]

	if h.strategy == Adaptive {
		if cur.AvgLatency > 0 && cur.AvgLatency < 200*time.Millisecond && cur.ErrorCnt < 5 {
			return h.current
		}
	}

	var candidates []int
	for i, p := range h.pool {
		if p.Active {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}

	switch h.strategy {
	case Sequential:
		for _, i := range candidates {
			if i > h.current {
				return i
			}
		}
		return candidates[0]

	case Random:
		return candidates[int(h.rng()*float64(len(candidates)))%len(candidates)]

	case Weighted:
		total := 0.0
		for _, i := range candidates {
			total += h.pool[i].Score()
		}
		if total <= 0 {
			return candidates[0]
		}
		r := h.rng() * total
		acc := 0.0
		for _, i := range candidates {
			acc += h.pool[i].Score()
			if r <= acc {
				return i
			}
		}
		return candidates[len(candidates)-1]

	case LatencyBased:
		best := candidates[0]
		for _, i := range candidates[1:] {
			if h.pool[i].AvgLatency < h.pool[best].AvgLatency {
				best = i
			}
		}
		return best

	default: // Adaptive fallback: maximize score · 1/(1+avg_latency_ms/100)
		best := candidates[0]
		bestVal := adaptiveValue(h.pool[best])
		for _, i := range candidates[1:] {
			if v := adaptiveValue(h.pool[i]); v > bestVal {
				best, bestVal = i, v
			}
		}
		return best
	}
}

func adaptiveValue(p *PortState) float64 {
	ms := float64(p.AvgLatency.Milliseconds())
	return p.Score() * (1.0 / (1.0 + ms/100.0))
}

// Snapshot returns a copy of every port's state, sorted by port number.
func (h *Hopper) Snapshot() []PortState {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]PortState, len(h.pool))
	for i, p := range h.pool {
		out[i] = *p
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// mrand is the default non-deterministic source of [0,1) floats. New stores
// it in the Hopper's rng field, which is what selection reads, so a
// different source can be put in that field.
func mrand() float64 {
	return randFloat()
}
