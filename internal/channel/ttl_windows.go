//go:build windows

package channel

import "syscall"

const (
	ipProtoIP = 0
	ipTTL     = 4
)

// setIPv4TTL sets the TTL for outgoing packets on a raw IPv4 socket.
func setIPv4TTL(fd uintptr, ttl int) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), ipProtoIP, ipTTL, ttl)
}
