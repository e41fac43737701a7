package channel

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dtrace/trippy/internal/wire"
)

// MemChannel is an in-memory Channel stub used by internal/tracer's own
// tests (spec.md §8's "in-memory Channel stub"). It models a path as a
// fixed map from TTL to a responding host and a reply latency; sending a
// probe at a modelled TTL schedules a Response to be delivered after that
// latency, as if a real router had replied.
type MemChannel struct {
	mu      sync.Mutex
	hops    map[int]MemHop
	dest    net.IP
	pending chan *Response
	closed  bool

	// clock lets tests control "now" so RTTs are deterministic; defaults
	// to time.Now.
	Now func() time.Time
}

// MemHop describes one simulated router: the host that replies at this
// TTL, how long it takes, and whether its reply represents having reached
// the destination (an Echo Reply / port-unreachable / SYN-ACK) rather
// than a mere Time Exceeded. A TTL absent from the map, or one whose
// MemHop has Unanswered set, never replies, modelling a silent hop.
type MemHop struct {
	Host       net.IP
	Latency    time.Duration
	Reached    bool
	Unanswered bool // forces a silent hop even if present in the map
}

// NewMemChannel builds a stub channel for dest whose path is hops (keyed
// by TTL).
func NewMemChannel(dest net.IP, hops map[int]MemHop) *MemChannel {
	return &MemChannel{
		hops:    hops,
		dest:    dest,
		pending: make(chan *Response, 256),
		Now:     time.Now,
	}
}

func (c *MemChannel) SendProbe(ctx context.Context, p OutboundProbe) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSocketClosed
	}
	hop, ok := c.hops[p.TTL]
	c.mu.Unlock()

	if !ok || hop.Unanswered {
		return nil // silent hop: never produces a response
	}

	key, err := keyForOutbound(p)
	if err != nil {
		return err
	}

	kind := wire.KindTimeExceeded
	if hop.Reached {
		kind = wire.KindEchoReply
	}

	go func() {
		timer := time.NewTimer(hop.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}

		resp := &Response{
			Kind:       kind,
			Host:       hop.Host,
			RecvAt:     c.Now(),
			Key:        key,
			ChecksumOK: true,
			Reached:    hop.Reached && p.Proto == wire.ProtoTCP,
		}

		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		select {
		case c.pending <- resp:
		default:
		}
	}()

	return nil
}

func (c *MemChannel) RecvProbeResponse(timeout time.Duration) (*Response, error) {
	select {
	case r, ok := <-c.pending:
		if !ok {
			return nil, ErrSocketClosed
		}
		return r, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (c *MemChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.pending)
	}
	return nil
}

// keyForOutbound derives the correlation key a real ICMP error or direct
// response would carry for this outbound probe, so the stub's replies
// round-trip through the same Prober lookup path production traffic does.
func keyForOutbound(p OutboundProbe) (wire.CorrelationKey, error) {
	switch p.Proto {
	case wire.ProtoICMP:
		if len(p.Payload) < 8 {
			return wire.CorrelationKey{}, wire.ErrPacketTooSmall
		}
		id := uint16(p.Payload[4])<<8 | uint16(p.Payload[5])
		seq := uint16(p.Payload[6])<<8 | uint16(p.Payload[7])
		return wire.ICMPEchoKey(id, seq), nil

	case wire.ProtoUDP:
		if len(p.Payload) < 4 {
			return wire.CorrelationKey{}, wire.ErrPacketTooSmall
		}
		src := uint16(p.Payload[0])<<8 | uint16(p.Payload[1])
		dst := uint16(p.Payload[2])<<8 | uint16(p.Payload[3])
		return wire.UDPPortsKey(src, dst), nil

	case wire.ProtoTCP:
		if len(p.Payload) < 8 {
			return wire.CorrelationKey{}, wire.ErrPacketTooSmall
		}
		src := uint16(p.Payload[0])<<8 | uint16(p.Payload[1])
		dst := uint16(p.Payload[2])<<8 | uint16(p.Payload[3])
		seq := uint32(p.Payload[4])<<24 | uint32(p.Payload[5])<<16 | uint32(p.Payload[6])<<8 | uint32(p.Payload[7])
		return wire.TCPTupleKey(src, dst, seq), nil

	default:
		return wire.CorrelationKey{}, ErrUnsupportedProto
	}
}

var _ Channel = (*MemChannel)(nil)
