package framer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"

	"github.com/google/uuid"
)

// XHTTPTunnel implements the chunked HTTP/2 tunnel framer (XHTTP): it is an
// HTTP2Tunnel with a generated random path and a per-connection
// session-id header, per spec.md §4.2. The random path itself is not part
// of the CONNECT authority/headers this framer emits (the authority is
// still the real host); callers that need the path in a request URI track
// it via Path.
type XHTTPTunnel struct {
	*HTTP2Tunnel
	Path string
}

// NewXHTTPTunnel creates an XHTTP tunnel framer with a fresh random path
// and session id.
func NewXHTTPTunnel(conn net.Conn, authority, userAgent string) *XHTTPTunnel {
	return &XHTTPTunnel{
		HTTP2Tunnel: NewHTTP2Tunnel(conn, authority, uuid.NewString(), userAgent),
		Path:        "/" + randomHexPath(8),
	}
}

func randomHexPath(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Connect delegates to the embedded HTTP2Tunnel's handshake.
func (x *XHTTPTunnel) Connect(ctx context.Context) error {
	return x.HTTP2Tunnel.Connect(ctx)
}
