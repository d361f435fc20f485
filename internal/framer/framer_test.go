package framer

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, 1 << 40}
	for _, v := range cases {
		enc := EncodeVarint(v)
		got, err := DecodeVarint(bytes.NewReader(enc))
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: encoded %d, decoded %d", v, got)
		}
	}
}

func TestVarintLengthClass(t *testing.T) {
	cases := map[uint64]int{0: 1, 63: 1, 64: 2, 16383: 2, 16384: 4, 1073741823: 4, 1073741824: 8}
	for v, wantLen := range cases {
		enc := EncodeVarint(v)
		if len(enc) != wantLen {
			t.Fatalf("value %d: expected %d-byte encoding, got %d", v, wantLen, len(enc))
		}
	}
}

func TestXORSelfInverse(t *testing.T) {
	orig := []byte("hello authenticated datagram")
	buf := append([]byte(nil), orig...)
	xorInPlace(buf, 0x5A)
	if bytes.Equal(buf, orig) {
		t.Fatal("expected XOR to change the bytes")
	}
	xorInPlace(buf, 0x5A)
	if !bytes.Equal(buf, orig) {
		t.Fatal("expected XOR applied twice to be self-inverse")
	}
}

func TestHybridHeaderLayout(t *testing.T) {
	id := [16]byte{1, 2, 3}
	h := &Hybrid{identity: id, host: "example.com", port: 443, command: HybridStream}
	hdr := h.buildHeader()

	if hdr[0] != 0x01 {
		t.Fatalf("expected version byte 1, got %d", hdr[0])
	}
	if !bytes.Equal(hdr[1:17], id[:]) {
		t.Fatal("identity bytes mismatch")
	}
	if hdr[17] != 0x00 {
		t.Fatalf("expected zero addons length, got %d", hdr[17])
	}
	if hdr[18] != byte(HybridStream) {
		t.Fatalf("expected command byte %d, got %d", HybridStream, hdr[18])
	}
	port := int(hdr[19])<<8 | int(hdr[20])
	if port != 443 {
		t.Fatalf("expected port 443, got %d", port)
	}
	if hdr[21] != hybridAddrTypeDomain {
		t.Fatalf("expected address-type domain, got %d", hdr[21])
	}
	hostLen := int(hdr[22])
	if hostLen != len("example.com") {
		t.Fatalf("expected host length %d, got %d", len("example.com"), hostLen)
	}
	if string(hdr[23:23+hostLen]) != "example.com" {
		t.Fatalf("expected host bytes %q, got %q", "example.com", hdr[23:23+hostLen])
	}
}

func TestGRPCTunnelSendRecvRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewGRPCTunnel(clientConn, "example.com", "session-1", "duskline/test")
	server := NewGRPCTunnel(serverConn, "example.com", "session-1", "duskline/test")

	payload := []byte("nested dialer payload over a grpc-framed protobuf envelope")
	errC := make(chan error, 1)
	go func() { errC <- client.Send(payload) }()

	buf := make([]byte, 4096)
	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := server.Recv(buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if err := <-errC; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Fatalf("round trip mismatch: got %q, want %q", buf[:n], payload)
	}
}

func TestFrameHeaderEncoding(t *testing.T) {
	var out bytes.Buffer
	writeFrameHeader(&out, 10, http2FrameData, http2FlagEndStream, 1)
	b := out.Bytes()
	length := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	if length != 10 {
		t.Fatalf("expected length 10, got %d", length)
	}
	if b[3] != http2FrameData {
		t.Fatalf("expected frame type DATA, got %d", b[3])
	}
}
