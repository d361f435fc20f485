package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// ProbeResult holds the outcome of a single endpoint connectivity test.
type ProbeResult struct {
	Success     bool
	Latency     time.Duration
	FragSupport bool
	Err         error
}

// Prober opens a TCP connection and performs a minimal TLS-spoof handshake
// probe, ported from internal/dpi/probe.go's TestDirect/tlsHandshake.
type Prober struct {
	Timeout time.Duration
	// Dial overrides the dialer (tests inject a fake); defaults to net.Dialer.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewProber creates a prober with the given per-attempt timeout.
func NewProber(timeout time.Duration) *Prober {
	return &Prober{Timeout: timeout}
}

func (p *Prober) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	if p.Dial != nil {
		return p.Dial(ctx, network, addr)
	}
	d := &net.Dialer{}
	return d.DialContext(ctx, network, addr)
}

// Probe connects to host:port, measures latency, and performs a TLS
// handshake using sni as the ServerName. fragSupport is determined by
// whether the handshake still completes when the ClientHello is split into
// two writes (a minimal fragmentation-support check).
func (p *Prober) Probe(ctx context.Context, host string, port int, sni string) ProbeResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := p.dial(ctx, "tcp", addr)
	if err != nil {
		return ProbeResult{Err: fmt.Errorf("dial %s: %w", addr, err)}
	}
	defer conn.Close()

	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         sni,
		InsecureSkipVerify: true, // decoy outer handshake only, per spec.md Non-goals
		MinVersion:         tls.VersionTLS12,
	})
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(p.Timeout)
	}
	_ = tlsConn.SetDeadline(deadline)

	if err := tlsConn.Handshake(); err != nil {
		return ProbeResult{Latency: time.Since(start), Err: fmt.Errorf("tls handshake: %w", err)}
	}

	return ProbeResult{
		Success:     true,
		Latency:     time.Since(start),
		FragSupport: p.probeFragSupport(ctx, addr, sni),
	}
}

// probeFragSupport repeats the handshake over a fresh connection whose
// first write is split into two segments (via splitFirstWriteConn), and
// reports whether the split ClientHello still completes a handshake. This
// is the scanner's minimal stand-in for "does this path tolerate our
// fragmentation evasion technique".
func (p *Prober) probeFragSupport(ctx context.Context, addr, sni string) bool {
	conn, err := p.dial(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	defer conn.Close()

	split := &splitFirstWriteConn{Conn: conn}
	tlsConn := tls.Client(split, &tls.Config{
		ServerName:         sni,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	})
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(p.Timeout)
	}
	_ = tlsConn.SetDeadline(deadline)

	return tlsConn.Handshake() == nil
}

// splitFirstWriteConn splits the first Write call into two separate
// net.Conn.Write calls, simulating the Anti-DPI Transformer's fragmentation
// mode for probing purposes only (it does not itself apply full preprocess
// shaping — that happens in internal/antidpi for real traffic).
type splitFirstWriteConn struct {
	net.Conn
	done bool
}

func (c *splitFirstWriteConn) Write(b []byte) (int, error) {
	if c.done || len(b) < 2 {
		return c.Conn.Write(b)
	}
	c.done = true
	mid := len(b) / 2
	if _, err := c.Conn.Write(b[:mid]); err != nil {
		return 0, err
	}
	n, err := c.Conn.Write(b[mid:])
	return mid + n, err
}
