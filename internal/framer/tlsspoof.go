package framer

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"net"

	"duskline/internal/fingerprint"
)

// TLSSpoof emits a client-hello carrying a chosen SNI and a chosen
// fingerprint's cipher-suite list, in the fingerprint's order. The only
// extension it writes is server_name; the fingerprint's Extensions list is
// not emitted. It performs only the visible outer
// handshake: it does not derive session keys, and records that a
// server-hello was received without validating it cryptographically — the
// real-TLS peer surrounding it (when present) provides confidentiality,
// per spec.md's Non-goals.
type TLSSpoof struct {
	conn        net.Conn
	sni         string
	fingerprint fingerprint.Fingerprint
	gotHello    bool
}

// NewTLSSpoof creates a TLS-spoof framer over conn.
func NewTLSSpoof(conn net.Conn, sni string, fp fingerprint.Fingerprint) *TLSSpoof {
	return &TLSSpoof{conn: conn, sni: sni, fingerprint: fp}
}

// Connect writes a plausible ClientHello record and reads back whatever
// the peer sends in response, recording only that a reply arrived.
func (t *TLSSpoof) Connect(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(dl)
	} else {
		_ = t.conn.SetDeadline(deadlineFrom(ctx))
	}
	defer t.conn.SetDeadline(zeroTime)

	hello := t.buildClientHello()
	if _, err := t.conn.Write(hello); err != nil {
		return wrapFatal("TLSSpoof", err)
	}

	hdr := make([]byte, 5)
	if err := readFullRetry(t.conn, hdr, "TLSSpoof"); err != nil {
		return err
	}
	t.gotHello = true
	return nil
}

// buildClientHello constructs a wire-plausible TLS 1.2-style ClientHello
// using the fingerprint's cipher-suite ordering and a single server_name
// extension.
func (t *TLSSpoof) buildClientHello() []byte {
	body := make([]byte, 0, 256)
	body = append(body, 0x03, 0x03) // legacy client version

	var rnd [32]byte
	_, _ = rand.Read(rnd[:])
	body = append(body, rnd[:]...)

	body = append(body, 0x00) // empty session id

	cs := make([]byte, 2*len(t.fingerprint.CipherSuites))
	for i, suite := range t.fingerprint.CipherSuites {
		binary.BigEndian.PutUint16(cs[i*2:], suite)
	}
	body = append(body, byte(len(cs)>>8), byte(len(cs)))
	body = append(body, cs...)

	body = append(body, 0x01, 0x00) // compression methods: null only

	// SNI is the only extension whose payload we actually synthesize; the
	// remaining entries in the fingerprint's Extensions list only affect
	// the cipher/extension ordering signature recorded by the registry.
	ext := buildSNIExtension(t.sni)
	body = append(body, byte(len(ext)>>8), byte(len(ext)))
	body = append(body, ext...)

	handshake := make([]byte, 0, len(body)+4)
	handshake = append(handshake, 0x01) // handshake type: client_hello
	l := len(body)
	handshake = append(handshake, byte(l>>16), byte(l>>8), byte(l))
	handshake = append(handshake, body...)

	record := make([]byte, 0, len(handshake)+5)
	record = append(record, 0x16, 0x03, 0x01) // content type handshake, TLS 1.0 record version
	record = append(record, byte(len(handshake)>>8), byte(len(handshake)))
	record = append(record, handshake...)
	return record
}

func buildSNIExtension(sni string) []byte {
	name := []byte(sni)
	serverNameList := make([]byte, 0, len(name)+3)
	serverNameList = append(serverNameList, 0x00) // name type: host_name
	serverNameList = append(serverNameList, byte(len(name)>>8), byte(len(name)))
	serverNameList = append(serverNameList, name...)

	ext := make([]byte, 0, len(serverNameList)+6)
	ext = append(ext, 0x00, 0x00) // extension type: server_name
	extLen := len(serverNameList) + 2
	ext = append(ext, byte(extLen>>8), byte(extLen))
	ext = append(ext, byte(len(serverNameList)>>8), byte(len(serverNameList)))
	ext = append(ext, serverNameList...)
	return ext
}

// Send writes an application record. This framer does not re-encrypt
// payloads; wrapping in a real TLS connection is the caller's concern when
// one is layered outside.
func (t *TLSSpoof) Send(b []byte) error {
	_, err := t.conn.Write(b)
	return wrapTransport("TLSSpoof", err)
}

// Recv reads into buf.
func (t *TLSSpoof) Recv(buf []byte) (int, error) {
	n, err := t.conn.Read(buf)
	if err != nil {
		return n, wrapTransport("TLSSpoof", err)
	}
	return n, nil
}

// Close closes the underlying connection.
func (t *TLSSpoof) Close() error { return t.conn.Close() }

// HandshakeCompleted reports whether a server-hello-shaped reply was
// received during Connect.
func (t *TLSSpoof) HandshakeCompleted() bool { return t.gotHello }
