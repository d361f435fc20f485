// Package framer implements the Protocol Framers from spec.md §4.2: one
// wire-format encoder/decoder per supported protocol, each satisfying the
// common Framer interface (connect/send/recv/close). Grounded on the
// teacher's internal/provider package (one file per backend protocol, each
// wrapping a net.Conn and exposing a small uniform surface) and on the
// real wire libraries named in SPEC_FULL.md's domain stack.
package framer

import (
	"context"
	"io"
	"time"

	"duskline/internal/xerrors"
)

// Framer is the uniform interface every protocol encoder/decoder satisfies.
type Framer interface {
	// Connect performs the protocol's handshake over conn.
	Connect(ctx context.Context) error
	// Send writes one application-level payload.
	Send(b []byte) error
	// Recv reads into buf, returning the number of bytes read.
	Recv(buf []byte) (int, error)
	// Close tears down the framer and its underlying transport.
	Close() error
}

// Failure conditions shared by every framer, per spec.md §4.2: connection
// timeout and handshake-rejection are fatal; a truncated read is retried
// once, then fatal; a ciphertext-size overflow is fatal.

func wrapFatal(component string, err error) error {
	if err == nil {
		return nil
	}
	return xerrors.New(xerrors.KindHandshake, component, err)
}

func wrapTransport(component string, err error) error {
	if err == nil {
		return nil
	}
	return xerrors.New(xerrors.KindTransport, component, err)
}

// handshakeTimeout is the default timeout applied to a framer's Connect
// call when the caller's context carries no deadline.
const handshakeTimeout = 10 * time.Second

// zeroTime clears a previously set connection deadline.
var zeroTime time.Time

func deadlineFrom(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(handshakeTimeout)
}

// readFullRetry reads exactly len(buf) bytes from r, retrying the whole
// read once on a truncated result before giving up fatally — per spec.md
// §4.2's "truncated read (retried once, then fatal)" failure condition.
func readFullRetry(r io.Reader, buf []byte, component string) error {
	_, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	_, err = io.ReadFull(r, buf)
	if err != nil {
		return wrapTransport(component, err)
	}
	return nil
}
