package framer

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCTunnel implements the gRPC tunnel framer: each message is a real
// protobuf-serialized envelope (a `wrapperspb.BytesValue` carrying the raw
// tunnel payload) prefixed with a 1-byte compression flag and a 32-bit
// big-endian length, matching gRPC's length-prefixed-message wire framing.
// The HTTP/2 preface is emitted on connect by delegating to HTTP2Tunnel's
// preface + SETTINGS exchange so the two tunnel framers share one code
// path for the common prefix.
type GRPCTunnel struct {
	h2 *HTTP2Tunnel
}

// NewGRPCTunnel creates a gRPC tunnel framer over conn.
func NewGRPCTunnel(conn net.Conn, authority, sessionID, userAgent string) *GRPCTunnel {
	return &GRPCTunnel{h2: NewHTTP2Tunnel(conn, authority, sessionID, userAgent)}
}

// Connect emits the shared HTTP/2 preface/SETTINGS/HEADERS sequence.
func (g *GRPCTunnel) Connect(ctx context.Context) error {
	return g.h2.Connect(ctx)
}

// Send marshals b as a protobuf BytesValue envelope, wraps it in a gRPC
// message frame, and writes it as one DATA frame.
func (g *GRPCTunnel) Send(b []byte) error {
	msg, err := proto.Marshal(wrapperspb.Bytes(b))
	if err != nil {
		return wrapTransport("GRPCTunnel", err)
	}

	buf := bytes.NewBuffer(nil)
	buf.WriteByte(0x00) // compression flag: uncompressed
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(msg)))
	buf.Write(length[:])
	buf.Write(msg)
	return g.h2.Send(buf.Bytes())
}

// Recv reads one DATA frame, strips the gRPC message prefix, and unmarshals
// the protobuf BytesValue envelope back to raw payload bytes.
func (g *GRPCTunnel) Recv(buf []byte) (int, error) {
	raw := make([]byte, len(buf)+5)
	n, err := g.h2.Recv(raw)
	if err != nil {
		return 0, err
	}
	if n < 5 {
		return 0, wrapTransport("GRPCTunnel", errShortMessage)
	}
	msgLen := binary.BigEndian.Uint32(raw[1:5])
	framed := raw[5:n]
	if uint32(len(framed)) < msgLen {
		return 0, wrapTransport("GRPCTunnel", errShortMessage)
	}

	var wrapper wrapperspb.BytesValue
	if err := proto.Unmarshal(framed[:msgLen], &wrapper); err != nil {
		return 0, wrapTransport("GRPCTunnel", err)
	}
	return copy(buf, wrapper.GetValue()), nil
}

// Close closes the underlying HTTP/2 tunnel.
func (g *GRPCTunnel) Close() error { return g.h2.Close() }

var errShortMessage = shortMessageErr{}

type shortMessageErr struct{}

func (shortMessageErr) Error() string { return "grpctunnel: message shorter than declared length" }
