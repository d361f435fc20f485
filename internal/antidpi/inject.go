package antidpi

import (
	"net"
	"syscall"
)

// InjectFake sends payload over conn with the connection's IP TTL
// temporarily lowered to ttl, so the packet is observed by on-path DPI
// middleboxes but expires before reaching the remote peer. Ported from
// internal/provider/dpibypass/desync_conn.go's sendFakePacket, generalized
// to any net.Conn whose underlying fd is reachable via SyscallConn.
//
// If conn does not expose a raw connection (e.g. it is not a *net.TCPConn),
// InjectFake falls back to sending payload at the connection's normal TTL;
// a fake packet sent at the real TTL still reaches the middlebox, it just
// also reaches the destination, which the caller's strategy must tolerate.
func InjectFake(conn net.Conn, payload []byte, ttl int) error {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		_, err := conn.Write(payload)
		return err
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		_, err := conn.Write(payload)
		return err
	}

	restore, err := setTTL(rc, ttl)
	if err != nil {
		_, werr := conn.Write(payload)
		return werr
	}
	defer restore()

	_, err = conn.Write(payload)
	return err
}
