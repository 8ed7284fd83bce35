//go:build !linux

package command

import "syscall"

// v6OnlyControl is a no-op on platforms where Go's net package
// already binds IPv6 sockets as v6-only by default (darwin, windows,
// bsd); see socket_linux.go for the Linux override via
// golang.org/x/sys/unix.
func v6OnlyControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
