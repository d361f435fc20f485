package orchestrator

import (
	"context"
	"net"
	"time"

	"duskline/internal/core"
	"duskline/internal/dialer"
	"duskline/internal/fingerprint"
	"duskline/internal/framer"
	"duskline/internal/mux"
)

// tlsSpoofLayer adapts framer.TLSSpoof to dialer.Layer.
type tlsSpoofLayer struct {
	sni string
	fp  fingerprint.Fingerprint
}

func (l *tlsSpoofLayer) Descriptor() core.LayerDescriptor {
	return core.LayerDescriptor{Kind: core.LayerTLSSpoof, SNI: l.sni, FingerprintID: l.fp.ID}
}

func (l *tlsSpoofLayer) Handshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	f := framer.NewTLSSpoof(conn, l.sni, l.fp)
	if err := f.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// hybridLayer adapts framer.Hybrid to dialer.Layer.
type hybridLayer struct {
	identity [16]byte
	host     string
	port     uint16
}

func (l *hybridLayer) Descriptor() core.LayerDescriptor {
	return core.LayerDescriptor{Kind: core.LayerHybridHandshake, Identity: l.identity}
}

func (l *hybridLayer) Handshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	f := framer.NewHybrid(conn, l.identity, l.host, l.port, framer.HybridStream)
	if err := f.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// muxLayer opens a Stream Multiplexer Session over the connection and
// returns its primary stream wrapped as a net.Conn, so it can serve as the
// dialer's innermost layer.
type muxLayer struct{}

func (l *muxLayer) Descriptor() core.LayerDescriptor {
	return core.LayerDescriptor{Kind: core.LayerMultiplexer}
}

func (l *muxLayer) Handshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	session := mux.NewSession(conn, true)
	stream, err := session.Open()
	if err != nil {
		return nil, err
	}
	return &streamConn{Stream: stream, raw: conn}, nil
}

// streamConn adapts a *mux.Stream (io.ReadWriteCloser) to net.Conn by
// delegating addressing/deadline methods to the underlying transport
// connection the multiplexer session runs over.
type streamConn struct {
	*mux.Stream
	raw net.Conn
}

func (s *streamConn) LocalAddr() net.Addr  { return s.raw.LocalAddr() }
func (s *streamConn) RemoteAddr() net.Addr { return s.raw.RemoteAddr() }

// Deadlines apply to the underlying transport connection; the
// multiplexer's own Read/Write are channel/buffer driven and do not
// currently observe per-stream deadlines.
func (s *streamConn) SetDeadline(t time.Time) error      { return s.raw.SetDeadline(t) }
func (s *streamConn) SetReadDeadline(t time.Time) error  { return s.raw.SetReadDeadline(t) }
func (s *streamConn) SetWriteDeadline(t time.Time) error { return s.raw.SetWriteDeadline(t) }

var _ dialer.Layer = (*tlsSpoofLayer)(nil)
var _ dialer.Layer = (*hybridLayer)(nil)
var _ dialer.Layer = (*muxLayer)(nil)
