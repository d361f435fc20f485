package framer

import (
	"context"
	"net"

	"github.com/google/uuid"
)

// HybridCommand selects whether a hybrid-handshake request is a stream or
// datagram request.
type HybridCommand byte

const (
	HybridStream   HybridCommand = 1
	HybridDatagram HybridCommand = 2
)

const hybridAddrTypeDomain = 2

// Hybrid implements the hybrid-handshake framer (identity + ephemeral):
// a version byte, 16-byte identity, zero-length addons, a command byte, a
// big-endian target port, an address-type byte, and a length-prefixed
// hostname. The public-key material this framer's name alludes to is
// exchanged by the surrounding real-TLS peer and is not reimplemented here,
// per spec.md §4.2.
type Hybrid struct {
	conn     net.Conn
	identity [16]byte
	host     string
	port     uint16
	command  HybridCommand
}

// NewHybrid creates a hybrid-handshake framer. identity is typically
// derived from a UUID, matching the teacher's VLESS provider's use of a
// UUID-shaped user identity.
func NewHybrid(conn net.Conn, identity [16]byte, host string, port uint16, cmd HybridCommand) *Hybrid {
	return &Hybrid{conn: conn, identity: identity, host: host, port: port, command: cmd}
}

// NewIdentity generates a fresh 16-byte identity from a random UUID.
func NewIdentity() [16]byte {
	var id [16]byte
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

// Connect writes the request header and reads back the version + addons
// response.
func (h *Hybrid) Connect(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = h.conn.SetDeadline(dl)
	} else {
		_ = h.conn.SetDeadline(deadlineFrom(ctx))
	}
	defer h.conn.SetDeadline(zeroTime)

	req := h.buildHeader()
	if _, err := h.conn.Write(req); err != nil {
		return wrapFatal("Hybrid", err)
	}

	resp := make([]byte, 2)
	if err := readFullRetry(h.conn, resp, "Hybrid"); err != nil {
		return err
	}
	addonsLen := int(resp[1])
	if addonsLen > 0 {
		addons := make([]byte, addonsLen)
		if err := readFullRetry(h.conn, addons, "Hybrid"); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hybrid) buildHeader() []byte {
	hostBytes := []byte(h.host)
	buf := make([]byte, 0, 1+16+1+1+2+1+1+len(hostBytes))
	buf = append(buf, 0x01)         // version
	buf = append(buf, h.identity[:]...)
	buf = append(buf, 0x00)         // addons length
	buf = append(buf, byte(h.command))
	buf = append(buf, byte(h.port>>8), byte(h.port))
	buf = append(buf, hybridAddrTypeDomain)
	buf = append(buf, byte(len(hostBytes)))
	buf = append(buf, hostBytes...)
	return buf
}

// Send writes a payload directly to the underlying connection.
func (h *Hybrid) Send(b []byte) error {
	_, err := h.conn.Write(b)
	return wrapTransport("Hybrid", err)
}

// Recv reads into buf.
func (h *Hybrid) Recv(buf []byte) (int, error) {
	n, err := h.conn.Read(buf)
	if err != nil {
		return n, wrapTransport("Hybrid", err)
	}
	return n, nil
}

// Close closes the underlying connection.
func (h *Hybrid) Close() error { return h.conn.Close() }
