//go:build linux || darwin || freebsd || netbsd || openbsd

package channel

import "syscall"

// setIPv4TTL sets the TTL for outgoing packets on a raw IPv4 socket.
func setIPv4TTL(fd uintptr, ttl int) error {
	return syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_TTL, ttl)
}
