package framer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/quic-go/qpack"
	"github.com/quic-go/quic-go/quicvarint"
)

const (
	CapsuleTypeData  = 0
	CapsuleTypeClose = 1
	capsuleMaxMTU    = 1200
)

// Capsule implements the datagram-proxy (capsule protocol) framer: each
// unit is (type varint, length varint, bytes), using the QUIC
// variable-length-integer encoding where the top two bits of the first
// byte select a {1,2,4,8}-byte length class. Payloads over the 1200-byte
// MTU are split across multiple capsules. Header encoding for the
// MASQUE-style CONNECT-UDP exchange during Connect uses qpack, matching
// the HTTP/3-adjacent shape named in SPEC_FULL.md's domain stack.
type Capsule struct {
	conn net.Conn
	r    *bufio.Reader
}

// NewCapsule creates a capsule framer over conn.
func NewCapsule(conn net.Conn) *Capsule {
	return &Capsule{conn: conn, r: bufio.NewReader(conn)}
}

// Connect emits a minimal CONNECT-UDP-style pseudo-header block (qpack
// encoded) announcing the proxied target, then awaits one capsule of
// acknowledgement.
func (c *Capsule) Connect(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl)
	} else {
		_ = c.conn.SetDeadline(deadlineFrom(ctx))
	}
	defer c.conn.SetDeadline(zeroTime)

	var headerBuf []byte
	enc := qpack.NewEncoder(writerFunc(func(p []byte) (int, error) {
		headerBuf = append(headerBuf, p...)
		return len(p), nil
	}))
	fields := []qpack.HeaderField{
		{Name: ":method", Value: "CONNECT"},
		{Name: ":protocol", Value: "connect-udp"},
	}
	for _, f := range fields {
		if err := enc.WriteField(f); err != nil {
			return wrapFatal("Capsule", err)
		}
	}

	if err := c.writeRaw(CapsuleTypeData, headerBuf); err != nil {
		return wrapFatal("Capsule", err)
	}

	_, length, err := c.readCapsuleHeader()
	if err != nil {
		return wrapFatal("Capsule", err)
	}
	if _, err := io.CopyN(io.Discard, c.r, int64(length)); err != nil {
		return wrapFatal("Capsule", err)
	}
	return nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// EncodeVarint encodes n using the QUIC variable-length-integer format,
// via quic-go's own varint codec (github.com/quic-go/quic-go/quicvarint).
func EncodeVarint(n uint64) []byte {
	return quicvarint.Append(nil, n)
}

// DecodeVarint reads one QUIC varint from r.
func DecodeVarint(r quicvarint.Reader) (uint64, error) {
	return quicvarint.Read(r)
}

func (c *Capsule) writeRaw(capsuleType uint64, payload []byte) error {
	buf := quicvarint.Append(nil, capsuleType)
	buf = quicvarint.Append(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	_, err := c.conn.Write(buf)
	return err
}

func (c *Capsule) readCapsuleHeader() (capsuleType, length uint64, err error) {
	capsuleType, err = DecodeVarint(c.r)
	if err != nil {
		return 0, 0, err
	}
	length, err = DecodeVarint(c.r)
	if err != nil {
		return 0, 0, err
	}
	return capsuleType, length, nil
}

// Send splits b into MTU-bounded data capsules.
func (c *Capsule) Send(b []byte) error {
	for len(b) > 0 {
		n := len(b)
		if n > capsuleMaxMTU {
			n = capsuleMaxMTU
		}
		if err := c.writeRaw(CapsuleTypeData, b[:n]); err != nil {
			return wrapTransport("Capsule", err)
		}
		b = b[n:]
	}
	return nil
}

// Recv reads one capsule's payload into buf.
func (c *Capsule) Recv(buf []byte) (int, error) {
	capsuleType, length, err := c.readCapsuleHeader()
	if err != nil {
		return 0, wrapTransport("Capsule", err)
	}
	if capsuleType == CapsuleTypeClose {
		return 0, io.EOF
	}
	if int(length) > len(buf) {
		return 0, wrapTransport("Capsule", errors.New("capsule: payload exceeds buffer"))
	}
	n, err := io.ReadFull(c.r, buf[:length])
	if err != nil {
		return n, wrapTransport("Capsule", err)
	}
	return n, nil
}

// Close sends a close capsule (best-effort) and closes the connection.
func (c *Capsule) Close() error {
	_ = c.writeRaw(CapsuleTypeClose, nil)
	return c.conn.Close()
}
