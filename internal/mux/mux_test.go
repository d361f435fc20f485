package mux

import (
	"net"
	"testing"
	"time"
)

// net.Conn already satisfies io.ReadWriteCloser, so the net.Pipe halves are
// passed to NewSession directly.

func newSessionPair(t *testing.T) (*Session, *Session) {
	t.Helper()
	c1, c2 := net.Pipe()
	client := NewSession(c1, true)
	server := NewSession(c2, false)
	return client, server
}

func TestStreamIDParity(t *testing.T) {
	client, server := newSessionPair(t)
	defer client.Close()
	defer server.Close()

	cs1, err := client.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cs1.ID()%2 == 0 {
		t.Fatalf("expected odd client stream id, got %d", cs1.ID())
	}

	cs2, err := client.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if cs2.ID() != cs1.ID()+2 {
		t.Fatalf("expected ids to increase by 2 within parity, got %d then %d", cs1.ID(), cs2.ID())
	}
}

func TestOpenAcceptRoundTrip(t *testing.T) {
	client, server := newSessionPair(t)
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	var gotID uint32
	go func() {
		st, err := server.Accept()
		if err == nil {
			gotID = st.ID()
		}
		close(done)
	}()

	cs, err := client.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for accept")
	}
	if gotID != cs.ID() {
		t.Fatalf("server accepted stream id %d, client opened %d", gotID, cs.ID())
	}
}

func TestPushAndReadData(t *testing.T) {
	client, server := newSessionPair(t)
	defer client.Close()
	defer server.Close()

	serverStream := make(chan *Stream, 1)
	go func() {
		st, err := server.Accept()
		if err == nil {
			serverStream <- st
		}
	}()

	cs, err := client.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var ss *Stream
	select {
	case ss = <-serverStream:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server stream")
	}

	msg := []byte("hello over the multiplexer")
	if _, err := cs.Write(msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, len(msg))
	n, err := ss.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != string(msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{Command: CmdPSH, StreamID: 7, Payload: []byte("payload")}
	buf, err := f.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	version, cmd, length, id, err := DecodeHeader(buf[:8])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if version != ProtocolVersion || cmd != CmdPSH || id != 7 || int(length) != len(f.Payload) {
		t.Fatalf("round trip mismatch: version=%d cmd=%v id=%d length=%d", version, cmd, id, length)
	}
}

func TestPayloadOverMaxRejected(t *testing.T) {
	f := Frame{Command: CmdPSH, StreamID: 1, Payload: make([]byte, MaxPayload+1)}
	if _, err := f.Encode(); err == nil {
		t.Fatal("expected error encoding oversized payload")
	}
}

// TestPayloadAtMaxBoundary pins the MaxPayload/uint16 boundary: exactly
// MaxPayload bytes must round-trip with the correct length, and MaxPayload
// must never exceed the wire length field's 65535 ceiling.
func TestPayloadAtMaxBoundary(t *testing.T) {
	if MaxPayload > 65535 {
		t.Fatalf("MaxPayload %d exceeds the 16-bit wire length field's range", MaxPayload)
	}
	f := Frame{Command: CmdPSH, StreamID: 1, Payload: make([]byte, MaxPayload)}
	buf, err := f.Encode()
	if err != nil {
		t.Fatalf("encode at MaxPayload: %v", err)
	}
	_, _, length, _, err := DecodeHeader(buf[:8])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if int(length) != MaxPayload {
		t.Fatalf("expected decoded length %d, got %d (uint16 wraparound corrupts the frame)", MaxPayload, length)
	}
}
