//go:build !linux && !darwin

package antidpi

import "syscall"

// setTTL is a no-op on platforms without a wired raw-socket TTL syscall
// path, mirroring the teacher's internal/provider/dpibypass/fake_linux.go
// stub. InjectFake still sends the payload at the connection's normal TTL.
func setTTL(rc syscall.RawConn, ttl int) (restore func(), err error) {
	return func() {}, nil
}
