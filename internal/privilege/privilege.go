// Package privilege checks whether the process has the privilege
// needed to open the raw sockets internal/channel requires, before a
// Tracer is constructed.
package privilege

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/net/icmp"
)

// ErrPermissionDenied indicates the process lacks the privilege needed
// to open a raw socket (typically CAP_NET_RAW on Linux, or
// Administrator on Windows).
var ErrPermissionDenied = errors.New("permission denied: raw sockets require elevated privileges")

// RequiresRoot reports whether tracing requires elevated privileges.
// Every probe protocol this module supports (ICMP, UDP, TCP SYN) opens
// at least one raw ICMP socket to read Time Exceeded/Destination
// Unreachable errors, so this is unconditionally true.
func RequiresRoot() bool {
	return true
}

// Check performs a preflight raw-socket open/close, the cheapest way
// to surface a permission failure before a Tracer commits to a target.
// A nil return means the caller may proceed to construct a Channel;
// a non-nil return wraps ErrPermissionDenied when the underlying error
// looks like a permission failure, or the raw error otherwise.
func Check() error {
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return err
	}
	return conn.Close()
}

// IsPermissionError returns true if err indicates insufficient
// privilege to open a raw socket.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
