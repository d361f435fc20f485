// Package relay implements the Relay Chain from spec.md §4.5, grounded on
// the teacher's internal/provider/httpproxy provider (CONNECT-based HTTP
// proxy dialer) generalized to a multi-hop chain, with PROXY-protocol
// header support via github.com/pires/go-proxyproto when chaining through
// a proxyproto-aware node.
package relay

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"sort"
	"strings"
	"time"

	proxyproto "github.com/pires/go-proxyproto"

	"duskline/internal/xerrors"
)

// MaxHops is the maximum number of nodes a relay chain will traverse.
const MaxHops = 5

// perHopTimeout bounds each CONNECT exchange.
const perHopTimeout = 10 * time.Second

// Node is one hop candidate: an endpoint with a CDN tag and measured latency.
type Node struct {
	Addr    string // host:port
	CDN     string
	Latency time.Duration
	// SendProxyHeader emits a PROXY protocol v1 header before the CONNECT
	// request when this node is known to be proxyproto-aware.
	SendProxyHeader bool
}

// BuildChain sorts nodes by ascending latency, optionally shuffles the
// interior (when there are more than two nodes) to diversify routing, and
// truncates to hopCount (capped at MaxHops).
func BuildChain(nodes []Node, hopCount int, shuffleInterior bool) []Node {
	sorted := append([]Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Latency < sorted[j].Latency })

	if shuffleInterior && len(sorted) > 2 {
		interior := sorted[1 : len(sorted)-1]
		rand.Shuffle(len(interior), func(i, j int) { interior[i], interior[j] = interior[j], interior[i] })
	}

	if hopCount > MaxHops {
		hopCount = MaxHops
	}
	if hopCount > len(sorted) {
		hopCount = len(sorted)
	}
	return sorted[:hopCount]
}

// Connect establishes the chain: plain TCP to the first node, then issues
// `CONNECT host:port HTTP/1.1` over the accumulating connection for each
// remaining hop. A response containing "200" admits the next hop;
// anything else is fatal. Each hop has a perHopTimeout deadline.
func Connect(ctx context.Context, chain []Node) (net.Conn, error) {
	if len(chain) == 0 {
		return nil, xerrors.New(xerrors.KindConfiguration, "RelayChain", fmt.Errorf("empty chain"))
	}

	var nd net.Dialer
	hopCtx, cancel := context.WithTimeout(ctx, perHopTimeout)
	defer cancel()

	conn, err := nd.DialContext(hopCtx, "tcp", chain[0].Addr)
	if err != nil {
		return nil, xerrors.New(xerrors.KindTransport, "RelayChain", fmt.Errorf("dial first hop %s: %w", chain[0].Addr, err))
	}

	if chain[0].SendProxyHeader {
		if err := writeProxyHeader(conn); err != nil {
			conn.Close()
			return nil, xerrors.New(xerrors.KindTransport, "RelayChain", err)
		}
	}

	r := bufio.NewReader(conn)
	for i := 1; i < len(chain); i++ {
		if err := connectHop(conn, r, chain[i]); err != nil {
			conn.Close()
			return nil, xerrors.New(xerrors.KindHandshake, "RelayChain", fmt.Errorf("hop %d to %s: %w", i, chain[i].Addr, err))
		}
	}

	// r may still hold bytes the last hop's response buffered past the
	// blank line; wrap conn so later reads see them before the raw socket.
	if r.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: r}, nil
	}
	return conn, nil
}

// connectHop issues one CONNECT request over conn and consumes the response
// headers from the shared reader r, so bytes r has already buffered past
// the blank line (e.g. the start of the next hop's own response) are not
// discarded.
func connectHop(conn net.Conn, r *bufio.Reader, node Node) error {
	_ = conn.SetDeadline(time.Now().Add(perHopTimeout))
	defer conn.SetDeadline(time.Time{})

	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", node.Addr, node.Addr)
	if _, err := conn.Write([]byte(req)); err != nil {
		return err
	}

	if node.SendProxyHeader {
		if err := writeProxyHeader(conn); err != nil {
			return err
		}
	}

	status, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.Contains(status, "200") {
		return fmt.Errorf("unexpected CONNECT response: %q", strings.TrimSpace(status))
	}

	// drain remaining header lines until the blank line
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}
	return nil
}

// bufferedConn wraps a net.Conn whose reads must first drain bytes already
// buffered in r (left over from the relay chain's CONNECT negotiation)
// before falling through to the underlying connection.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

func writeProxyHeader(conn net.Conn) error {
	hdr := proxyproto.HeaderProxyFromAddrs(1, conn.LocalAddr(), conn.RemoteAddr())
	_, err := hdr.WriteTo(conn)
	return err
}
