// Package channel owns the send and receive raw sockets used to emit
// probes and collect their ICMP/TCP responses, and presents the narrow
// send/recv contract the Prober drives. It hides all OS socket detail
// (address families, TTL socket options, platform differences) behind a
// single Channel interface; internal/prober knows nothing about sockets.
package channel

import (
	"context"
	"net"
	"time"

	"github.com/dtrace/trippy/internal/wire"
)

// OutboundProbe is everything a Channel needs to emit one probe.
type OutboundProbe struct {
	Proto   wire.Proto
	Dest    net.IP
	TTL     int
	Payload []byte // fully serialised protocol payload, from internal/wire
}

// Response is a decoded inbound message that matched one of the three
// probe shapes this package understands.
type Response struct {
	Kind       wire.ICMPKind
	Code       uint8
	Host       net.IP
	RecvAt     time.Time
	Key        wire.CorrelationKey
	ChecksumOK bool

	// Reached is set for TCP SYN-ACK/RST responses, which never carry an
	// ICMPKind since they are not ICMP messages at all.
	Reached bool
}

// Channel is the narrow contract the Prober uses to talk to the network.
// Implementations never busy-wait: RecvProbeResponse blocks up to timeout
// and returns (nil, nil) on expiry.
type Channel interface {
	// SendProbe serialises and writes one outbound probe, setting the
	// outgoing TTL via a per-packet socket option as described by
	// spec.md §4.1 ("The outgoing IP TTL is set on the socket
	// per-probe... not encoded by this component" — that component being
	// the wire codec; the Channel is precisely where it is set).
	SendProbe(ctx context.Context, p OutboundProbe) error

	// RecvProbeResponse blocks up to timeout for the next recognized
	// response. It returns (nil, nil) on timeout, and silently drops any
	// packet that does not parse into a recognized kind.
	RecvProbeResponse(timeout time.Duration) (*Response, error)

	// Close releases the underlying sockets.
	Close() error
}
