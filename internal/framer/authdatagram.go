package framer

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"net"

	mrand "math/rand/v2"
)

const authDatagramMaxPadding = 512

// AuthDatagramCommand selects stream vs datagram requests after the
// client-hello handshake.
type AuthDatagramCommand byte

const (
	AuthStream   AuthDatagramCommand = 1
	AuthDatagram AuthDatagramCommand = 2
)

// AuthDatagram implements the authenticated-datagram framer: a UDP-based
// client-hello carrying an auth string and declared bandwidth caps,
// followed by per-request stream/datagram frames, ported from the
// teacher's hysteria-style provider shape. An optional XOR obfuscation
// (self-inverse) may be applied uniformly to every outgoing/incoming byte.
type AuthDatagram struct {
	conn     net.PacketConn
	raddr    net.Addr
	auth     string
	upKbps   uint64
	downKbps uint64
	xorKey   byte
	useXOR   bool
}

// NewAuthDatagram creates an authenticated-datagram framer over a UDP
// PacketConn bound to raddr.
func NewAuthDatagram(conn net.PacketConn, raddr net.Addr, auth string, upKbps, downKbps uint64) *AuthDatagram {
	return &AuthDatagram{conn: conn, raddr: raddr, auth: auth, upKbps: upKbps, downKbps: downKbps}
}

// SetXOR enables or disables the XOR obfuscation with the given key byte.
// Because XOR is self-inverse, the same call toggles both directions.
func (a *AuthDatagram) SetXOR(enabled bool, key byte) {
	a.useXOR = enabled
	a.xorKey = key
}

// Connect sends the client-hello and awaits the status byte. A nonzero
// status is an authentication failure (fatal).
func (a *AuthDatagram) Connect(ctx context.Context) error {
	hello, err := a.buildClientHello()
	if err != nil {
		return wrapFatal("AuthDatagram", err)
	}

	if err := a.writeTo(hello); err != nil {
		return wrapFatal("AuthDatagram", err)
	}

	buf := make([]byte, 1)
	n, _, err := a.conn.ReadFrom(buf)
	if err != nil || n < 1 {
		return wrapFatal("AuthDatagram", err)
	}
	if a.useXOR {
		xorInPlace(buf, a.xorKey)
	}
	if buf[0] != 0 {
		return wrapFatal("AuthDatagram", errStatus(buf[0]))
	}
	return nil
}

func (a *AuthDatagram) buildClientHello() ([]byte, error) {
	authBytes := []byte(a.auth)
	padLen := mrand.IntN(authDatagramMaxPadding)
	pad := make([]byte, padLen)
	if _, err := rand.Read(pad); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 1+2+len(authBytes)+8+8+len(pad))
	buf = append(buf, 0x01) // version
	buf = append(buf, byte(len(authBytes)>>8), byte(len(authBytes)))
	buf = append(buf, authBytes...)

	bw := make([]byte, 16)
	binary.BigEndian.PutUint64(bw[0:8], a.upKbps)
	binary.BigEndian.PutUint64(bw[8:16], a.downKbps)
	buf = append(buf, bw...)
	buf = append(buf, pad...)
	return buf, nil
}

// Request sends a stream/datagram request frame: (command, address-type,
// length-prefixed host, port, payload).
func (a *AuthDatagram) Request(cmd AuthDatagramCommand, host string, port uint16, payload []byte) error {
	hostBytes := []byte(host)
	buf := make([]byte, 0, 1+1+1+len(hostBytes)+2+len(payload))
	buf = append(buf, byte(cmd))
	buf = append(buf, hybridAddrTypeDomain)
	buf = append(buf, byte(len(hostBytes)))
	buf = append(buf, hostBytes...)
	buf = append(buf, byte(port>>8), byte(port))
	buf = append(buf, payload...)
	return a.writeTo(buf)
}

func (a *AuthDatagram) writeTo(b []byte) error {
	out := b
	if a.useXOR {
		out = append([]byte(nil), b...)
		xorInPlace(out, a.xorKey)
	}
	_, err := a.conn.WriteTo(out, a.raddr)
	return err
}

// Send writes an opaque payload datagram.
func (a *AuthDatagram) Send(b []byte) error {
	return wrapTransport("AuthDatagram", a.writeTo(b))
}

// Recv reads a single datagram into buf, reversing XOR obfuscation if enabled.
func (a *AuthDatagram) Recv(buf []byte) (int, error) {
	n, _, err := a.conn.ReadFrom(buf)
	if err != nil {
		return n, wrapTransport("AuthDatagram", err)
	}
	if a.useXOR {
		xorInPlace(buf[:n], a.xorKey)
	}
	return n, nil
}

// Close closes the underlying packet connection.
func (a *AuthDatagram) Close() error { return a.conn.Close() }

func xorInPlace(b []byte, key byte) {
	for i := range b {
		b[i] ^= key
	}
}

type errStatus byte

func (e errStatus) Error() string {
	return "auth-datagram: nonzero status byte"
}
