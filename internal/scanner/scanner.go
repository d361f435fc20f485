package scanner

import (
	"context"
	"net/netip"
	"sort"
	"sync"
	"time"

	"duskline/internal/core"
	"duskline/internal/log"
)

// Config configures a scan pass.
type Config struct {
	CDN         string
	Ports       []int
	MaxIPs      int
	Timeout     time.Duration
	MaxLatency  time.Duration
	Concurrency int
}

// Scanner discovers clean CDN endpoints: for each resolved IP and
// candidate port it opens a TCP connection, measures latency, and performs
// a minimal TLS-spoof probe, per spec.md §4.6.
type Scanner struct {
	resolver *Resolver
	prober   *Prober
	cache    *Cache
}

// New creates a Scanner.
func New(resolver *Resolver, prober *Prober, cache *Cache) *Scanner {
	if cache == nil {
		cache = NewCache()
	}
	return &Scanner{resolver: resolver, prober: prober, cache: cache}
}

// Scan resolves host, probes every (ip, port) pair up to cfg.MaxIPs IPs,
// and returns the ranked list of clean endpoints. An endpoint is "clean"
// iff the TLS-spoof probe succeeded and measured latency is within
// cfg.MaxLatency. Returns an empty (not nil-error) slice iff every
// candidate failed connect or probe.
func (s *Scanner) Scan(ctx context.Context, host string, cfg Config) ([]core.Endpoint, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	ips, err := s.resolver.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) > cfg.MaxIPs {
		ips = ips[:cfg.MaxIPs]
	}

	type job struct {
		ip   string
		port int
	}
	var jobs []job
	for _, ip := range ips {
		for _, port := range cfg.Ports {
			jobs = append(jobs, job{ip, port})
		}
	}

	sem := make(chan struct{}, cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []core.Endpoint

	for _, j := range jobs {
		if cached, ok := s.cache.Get(j.ip); ok {
			mu.Lock()
			results = append(results, cached)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			pr := s.prober.Probe(ctx, j.ip, j.port, host)
			if !pr.Success || pr.Latency > cfg.MaxLatency {
				log.Log.Debugf("Scanner", "probe %s:%d failed or over budget: %v", j.ip, j.port, pr.Err)
				return
			}

			addr, aerr := netip.ParseAddr(j.ip)
			if aerr != nil {
				return
			}

			ep := core.Endpoint{
				Addr:        netip.AddrPortFrom(addr, uint16(j.port)),
				CDN:         cfg.CDN,
				Latency:     pr.Latency,
				TLSValid:    true,
				FragSupport: pr.FragSupport,
				Quality:     core.QualityScore(pr.Latency),
				LastTested:  time.Now(),
			}
			s.cache.Put(j.ip, ep)

			mu.Lock()
			results = append(results, ep)
			mu.Unlock()
		}(j)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Less(results[j]) })
	return results, nil
}
