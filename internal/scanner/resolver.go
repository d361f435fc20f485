package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"

	"duskline/internal/xerrors"
)

// Resolver resolves a CDN hostname to candidate IPs using an explicit DNS
// server via github.com/miekg/dns, with a static fallback list for when
// resolution fails — spec.md §7: "resolution: DNS failure, retry once then
// fallback to static list."
type Resolver struct {
	Server  string // e.g. "1.1.1.1:53"
	Static  map[string][]string
	Timeout time.Duration
}

// NewResolver creates a resolver against the given DNS server.
func NewResolver(server string) *Resolver {
	return &Resolver{
		Server:  server,
		Static:  make(map[string][]string),
		Timeout: 3 * time.Second,
	}
}

// Resolve returns the A-record IPs for host, retrying once on failure
// before falling back to any statically configured IPs for that host.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]string, error) {
	ips, err := r.lookupOnce(ctx, host)
	if err == nil && len(ips) > 0 {
		return ips, nil
	}

	ips, err = r.lookupOnce(ctx, host)
	if err == nil && len(ips) > 0 {
		return ips, nil
	}

	if static := r.Static[host]; len(static) > 0 {
		return static, nil
	}

	return nil, xerrors.New(xerrors.KindResolution, "Scanner", fmt.Errorf("resolve %q: %w", host, err))
}

func (r *Resolver) lookupOnce(ctx context.Context, host string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	c := new(dns.Client)
	c.Timeout = r.Timeout

	deadline, ok := ctx.Deadline()
	if ok {
		if d := time.Until(deadline); d > 0 && d < c.Timeout {
			c.Timeout = d
		}
	}

	resp, _, err := c.Exchange(m, r.Server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns rcode %d", resp.Rcode)
	}

	var ips []string
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}
