//go:build linux || darwin

package antidpi

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// setTTL temporarily lowers the socket's IP_TTL to ttl and returns a
// restore func that puts the original value back. Ported from
// internal/provider/dpibypass/fake_darwin.go.
func setTTL(rc syscall.RawConn, ttl int) (restore func(), err error) {
	if ttl <= 0 {
		ttl = 1
	}

	var original int
	var controlErr error

	if cerr := rc.Control(func(fd uintptr) {
		v, e := unix.GetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL)
		if e != nil {
			controlErr = e
			return
		}
		original = v
	}); cerr != nil {
		return nil, cerr
	}
	if controlErr != nil {
		return nil, controlErr
	}

	if cerr := rc.Control(func(fd uintptr) {
		controlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, ttl)
	}); cerr != nil {
		return nil, cerr
	}
	if controlErr != nil {
		return nil, controlErr
	}

	return func() {
		time.Sleep(500 * time.Microsecond)
		_ = rc.Control(func(fd uintptr) {
			_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, original)
		})
	}, nil
}
