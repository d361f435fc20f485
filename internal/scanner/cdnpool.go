package scanner

import (
	"sort"
	"sync"

	"duskline/internal/core"
)

// CDNStatus tracks one CDN tag's health across scan passes.
type CDNStatus struct {
	CDN        string
	Active     bool
	HealthyIPs int
	Score      float64
}

// CDNPool picks which CDN tag to scan against next, failing over away from
// a CDN whose candidates keep coming back unclean. Unlike a single static
// cfg.Scan.CDN string, it tracks a small table of candidate CDNs and always
// offers the best-scoring active one.
type CDNPool struct {
	mu       sync.Mutex
	statuses []*CDNStatus
}

// NewCDNPool seeds a pool from an ordered list of CDN tags; the first tag
// gets the highest initial score so a fresh pool behaves like a single-CDN
// scanner until evidence favors another CDN.
func NewCDNPool(cdns []string) *CDNPool {
	statuses := make([]*CDNStatus, len(cdns))
	for i, cdn := range cdns {
		statuses[i] = &CDNStatus{CDN: cdn, Active: true, Score: 1.0 - float64(i)*0.1}
	}
	return &CDNPool{statuses: statuses}
}

// UpdateFromScan folds a scan pass's results into each matching CDN's
// healthy-IP count and re-derives its score as the fraction of clean
// endpoints observed for it this pass.
func (p *CDNPool) UpdateFromScan(results []core.Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	counts := make(map[string]int)
	clean := make(map[string]int)
	for _, ep := range results {
		counts[ep.CDN]++
		if ep.Quality > 0 {
			clean[ep.CDN]++
		}
	}

	for _, s := range p.statuses {
		n := counts[s.CDN]
		if n == 0 {
			continue
		}
		s.HealthyIPs = clean[s.CDN]
		s.Score = float64(clean[s.CDN]) / float64(n)
	}
}

// Best returns the highest-scoring active CDN tag, or the pool's first tag
// if every CDN has been deactivated.
func (p *CDNPool) Best() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *CDNStatus
	for _, s := range p.statuses {
		if !s.Active {
			continue
		}
		if best == nil || s.Score > best.Score {
			best = s
		}
	}
	if best == nil {
		return p.statuses[0].CDN
	}
	return best.CDN
}

// Deactivate marks cdn as unusable, excluding it from all later Best()
// calls; the pool has no operation that reactivates it.
func (p *CDNPool) Deactivate(cdn string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.statuses {
		if s.CDN == cdn {
			s.Active = false
			return
		}
	}
}

// Snapshot returns a copy of every tracked CDN's status, sorted by
// descending score.
func (p *CDNPool) Snapshot() []CDNStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CDNStatus, len(p.statuses))
	for i, s := range p.statuses {
		out[i] = *s
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
