package prober

import (
	"net"

	"github.com/dtrace/trippy/internal/wire"
)

// Config holds the subset of the engine Configuration (spec.md §3) the
// Prober needs to build probes and schedule emission. internal/tracer
// owns the full Configuration and narrows it to this shape at
// construction.
type Config struct {
	Dest     net.IP
	LocalIP  net.IP // source address for UDP/TCP pseudo-header checksums
	Protocol wire.Proto

	FirstTTL    uint8
	MaxTTL      uint8
	MinSequence uint16
	MaxInflight uint8

	Identifier     uint16 // ICMP Echo identifier, stable for tracer lifetime
	PacketSize     uint16
	PayloadPattern byte

	// UDP: source port is fixed for the tracer's lifetime; destination
	// port advances with sequence (spec.md §4.1).
	UDPSourcePort   uint16
	UDPDestBasePort uint16

	// TCP: source port advances with sequence; destination port is
	// fixed (spec.md §4.1).
	TCPSourceBasePort uint16
	TCPDestPort       uint16
}

