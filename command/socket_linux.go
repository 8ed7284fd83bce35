//go:build linux

package command

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// v6OnlyControl forces IPV6_V6ONLY on the command UDP socket so a
// dual-stack kernel never maps IPv4 clients onto the IPv6 loopback
// listener (spec §6: "IPv4 clients are not served").
func v6OnlyControl(_, _ string, c syscall.RawConn) error {
	var sockoptErr error
	err := c.Control(func(fd uintptr) {
		sockoptErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
	})
	if err != nil {
		return fmt.Errorf("command: raw conn control failed: %w", err)
	}
	return sockoptErr
}
