// Package tracer drives rounds: it orchestrates a prober.Prober and a
// state.State within time-bounded rounds over a channel.Channel, signals
// round boundaries, and handles cancellation. It is the outermost engine
// component; everything else (CLI, TUI, reporters) talks to a Tracer.
package tracer

import (
	"net"
	"time"

	"github.com/dtrace/trippy/internal/wire"
)

// Validation bounds recovered from the original implementation's
// configuration layer, where the distilled spec leaves them as
// unspecified prose (SPEC_FULL.md §11).
const (
	MinPacketSize = 28
	MaxPacketSize = 1024

	MinReadTimeout = 10 * time.Millisecond
	MaxReadTimeout = 100 * time.Millisecond

	MinGraceDuration = 10 * time.Millisecond
	MaxGraceDuration = 1000 * time.Millisecond

	MinSourcePort = 1024
)

// Config holds the fully populated Configuration the engine accepts at
// construction (spec.md §3/§6). It is immutable after Tracer
// construction.
type Config struct {
	Dest net.IP

	Protocol wire.Proto

	FirstTTL    uint8
	MaxTTL      uint8
	MinSequence uint16
	MaxInflight uint8

	PacketSize     uint16
	PayloadPattern byte
	SourcePort     uint16 // UDP source port / TCP base source port; 0 means UDP probes carry source port 0 and TCP source ports start at 40000 (no OS ephemeral port is requested)
	DestPort       uint16 // UDP base dest port / TCP dest port; 0 means protocol default

	MinRoundDuration time.Duration
	MaxRoundDuration time.Duration
	GraceDuration    time.Duration
	ReadTimeout      time.Duration
	MaxUnknownHops   uint8

	MaxSamples int // bounded RTT ring size per hop, passed through to state.Config
}

// DefaultConfig returns a Config with the values the original
// implementation uses when unset (SPEC_FULL.md §11).
func DefaultConfig() Config {
	return Config{
		Protocol:         wire.ProtoICMP,
		FirstTTL:         1,
		MaxTTL:           30,
		MinSequence:      33000,
		MaxInflight:      8,
		PacketSize:       84,
		PayloadPattern:   0,
		MinRoundDuration: 1 * time.Second,
		MaxRoundDuration: 5 * time.Second,
		GraceDuration:    100 * time.Millisecond,
		ReadTimeout:      10 * time.Millisecond,
		MaxUnknownHops:   10,
		MaxSamples:       256,
	}
}

// Validate checks c against the engine's invariants, returning
// ConfigError (fatal at construction, spec.md §7) on the first violation
// found.
func (c Config) Validate() error {
	if c.Dest == nil {
		return &ConfigError{Reason: "destination address is required"}
	}
	if c.Dest.To4() == nil {
		return &ConfigError{Reason: "destination must be an IPv4 address (IPv6 is out of scope for the core)"}
	}
	if c.FirstTTL < 1 {
		return &ConfigError{Reason: "first_ttl must be at least 1"}
	}
	if c.FirstTTL > c.MaxTTL {
		return &ConfigError{Reason: "first_ttl must not exceed max_ttl"}
	}
	if c.MaxInflight == 0 {
		return &ConfigError{Reason: "max_inflight must be greater than 0"}
	}
	if uint64(c.MaxInflight) >= 1<<16 {
		return &ConfigError{Reason: "max_inflight must stay far below 2^16 so sequence wraparound cannot collide with in-flight probes"}
	}
	if c.PacketSize < MinPacketSize || c.PacketSize > MaxPacketSize {
		return &ConfigError{Reason: "packet_size out of range"}
	}
	if minPayload := c.minHeaderTotal(); int(c.PacketSize) < minPayload {
		return &ConfigError{Reason: "packet_size too small for the selected protocol's headers"}
	}
	if c.SourcePort != 0 && c.SourcePort < MinSourcePort {
		return &ConfigError{Reason: "source_port must be >= 1024 when set"}
	}
	if c.ReadTimeout < MinReadTimeout || c.ReadTimeout > MaxReadTimeout {
		return &ConfigError{Reason: "read_timeout out of range"}
	}
	if c.GraceDuration < MinGraceDuration || c.GraceDuration > MaxGraceDuration {
		return &ConfigError{Reason: "grace_duration out of range"}
	}
	if c.MinRoundDuration > c.MaxRoundDuration {
		return &ConfigError{Reason: "min_round_duration must not exceed max_round_duration"}
	}
	return nil
}

// minHeaderTotal returns the minimum packet_size (IP header plus the
// selected protocol's header) below which no payload at all could fit,
// per spec.md §6's packet-size contract.
func (c Config) minHeaderTotal() int {
	const ipHdr = 20
	switch c.Protocol {
	case wire.ProtoTCP:
		return ipHdr + 20
	case wire.ProtoUDP:
		return ipHdr + 8
	default: // ICMP
		return ipHdr + 8
	}
}
