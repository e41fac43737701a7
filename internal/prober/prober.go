package prober

import (
	"context"
	"time"

	"github.com/dtrace/trippy/internal/channel"
	"github.com/dtrace/trippy/internal/wire"
)

// inflightEntry is the correlation map's value: just enough to find the
// arena slot a response belongs to and to detect staleness, per the
// arena-ownership design in spec.md §9 ("the correlation map holds
// (round, ttl) index pairs, not references").
type inflightEntry struct {
	round int
	ttl   uint8
}

// Prober decides when to emit the next probe for the active round and
// turns inbound Channel responses into StateEvents. It is not safe for
// concurrent use: the Tracer Loop is its sole owner, matching the single
// send/recv thread in spec.md §5.
type Prober struct {
	cfg Config
	ch  channel.Channel

	buffer   []Probe // arena, length cfg.MaxTTL, indexed by ttl-1
	inflight map[wire.CorrelationKey]inflightEntry

	round            int
	currentTTL       uint8
	inFlightCount    uint8
	targetReached    bool
	targetReachedTTL uint8
}

// New builds a Prober for cfg, sending and receiving through ch.
func New(cfg Config, ch channel.Channel) *Prober {
	return &Prober{
		cfg:        cfg,
		ch:         ch,
		buffer:     make([]Probe, cfg.MaxTTL),
		inflight:   make(map[wire.CorrelationKey]inflightEntry),
		currentTTL: cfg.FirstTTL,
	}
}

// BeginRound resets per-round scheduling state. The arena and correlation
// map are not cleared: stale entries are naturally superseded because
// sequence numbers are round-dependent, and late responses from the
// previous round are simply discarded as unknown once this round's
// entries overwrite theirs.
func (p *Prober) BeginRound(round int) {
	p.round = round
	p.currentTTL = p.cfg.FirstTTL
	p.targetReached = false
	p.targetReachedTTL = 0
}

// TargetReached reports whether the destination has replied in the
// current round, and at which TTL.
func (p *Prober) TargetReached() (ttl uint8, reached bool) {
	return p.targetReachedTTL, p.targetReached
}

// ConsecutiveUnknownHops reports how many TTLs in a row, counting back
// from the highest TTL probed so far this round, have produced nothing
// useful — the Tracer Loop's dead-path cutoff input (spec.md §4.5). A
// probe counts as unknown once it is no longer fresh: either it has
// already completed with no real reply (NoResponse, or a
// DestinationUnreachable that isn't the target), or it is still
// AwaitReply, which is only meaningful once the caller has already
// waited at least min_round_duration (the Tracer Loop gates this call on
// that). KindTimeExceeded and a reached-target EchoReply reset the run.
func (p *Prober) ConsecutiveUnknownHops() uint8 {
	if p.currentTTL <= p.cfg.FirstTTL {
		return 0 // nothing probed yet this round
	}
	start := p.currentTTL - 1
	if start > p.cfg.MaxTTL {
		start = p.cfg.MaxTTL
	}
	var n uint8
	for ttl := start; ttl >= p.cfg.FirstTTL && ttl >= 1; ttl-- {
		probe := p.buffer[ttl-1]
		if probe.Round != p.round {
			break
		}
		switch {
		case probe.Status == StatusAwaitReply:
			n++
		case probe.Status == StatusComplete && (probe.Kind == KindNoResponse || probe.Kind == KindDestinationUnreachable):
			n++
		default:
			return n
		}
		if ttl == 1 {
			break
		}
	}
	return n
}

// Tick asks the Prober to emit the next probe it is ready to emit, per
// the rules in spec.md §4.3. It sends at most one real probe per call —
// the Tracer Loop calls Tick once per iteration between recv polls, so a
// round's worth of TTLs are sent gradually rather than in a burst larger
// than MaxInflight. TTLs beyond the target-reached TTL need no I/O and
// are all marked Skipped in the same call.
func (p *Prober) Tick(ctx context.Context) ([]Event, error) {
	var events []Event

	for p.currentTTL <= p.cfg.MaxTTL {
		if p.targetReached {
			ev := p.skip(p.currentTTL)
			events = append(events, ev)
			p.currentTTL++
			continue
		}

		if p.inFlightCount >= p.cfg.MaxInflight {
			return events, nil
		}

		ev, err := p.emit(ctx, p.currentTTL)
		p.currentTTL++
		if err != nil {
			events = append(events, ev)
			return events, err
		}
		events = append(events, ev)
		return events, nil
	}

	return events, nil
}

// Done reports whether every TTL in range has been sent, skipped, or is
// awaiting reply — i.e. there is nothing left for Tick to do this round.
func (p *Prober) Done() bool {
	return p.currentTTL > p.cfg.MaxTTL
}

func (p *Prober) skip(ttl uint8) Event {
	probe := Probe{
		Sequence: 0,
		TTL:      ttl,
		Round:    p.round,
		Status:   StatusSkipped,
	}
	p.buffer[ttl-1] = probe
	return Event{TTL: ttl, Kind: EventCompleted, Probe: probe}
}

func (p *Prober) emit(ctx context.Context, ttl uint8) (Event, error) {
	seq := p.allocSequence(ttl)
	key, payload := p.build(seq, ttl)

	probe := Probe{
		Sequence:   seq,
		Identifier: p.cfg.Identifier,
		TTL:        ttl,
		Round:      p.round,
		Status:     StatusAwaitReply,
	}

	out := channel.OutboundProbe{
		Proto:   p.cfg.Protocol,
		Dest:    p.cfg.Dest,
		TTL:     int(ttl),
		Payload: payload,
	}

	probe.SentAt = time.Now()
	if err := p.ch.SendProbe(ctx, out); err != nil {
		probe.Status = StatusNotSent
		p.buffer[ttl-1] = probe
		return Event{TTL: ttl, Kind: EventCompleted, Probe: probe}, err
	}

	p.buffer[ttl-1] = probe
	p.inflight[key] = inflightEntry{round: p.round, ttl: ttl}
	p.inFlightCount++

	return Event{TTL: ttl, Kind: EventSent, Probe: probe}, nil
}

// allocSequence computes the sequence/port discriminator for ttl in the
// current round, per spec.md §4.3: "min_sequence + round*max_ttl + ttl,
// modulo 2^16". spec.md §9 resolves the wrap-into-in-flight ambiguity by
// requiring max_inflight ≪ 2^16, so no duplicate-skipping logic is
// needed here.
func (p *Prober) allocSequence(ttl uint8) uint16 {
	return uint16((int(p.cfg.MinSequence) + p.round*int(p.cfg.MaxTTL) + int(ttl)) & 0xffff)
}

// build serialises the outbound payload for ttl/seq according to the
// configured protocol and returns the correlation key that will be used
// to match the response.
func (p *Prober) build(seq uint16, ttl uint8) (wire.CorrelationKey, []byte) {
	switch p.cfg.Protocol {
	case wire.ProtoUDP:
		dstPort := p.cfg.UDPDestBasePort + (seq - p.cfg.MinSequence)
		payloadLen := udpPayloadLen(p.cfg.PacketSize)
		payload := wire.EchoPayload(p.cfg.PayloadPattern, payloadLen)
		pkt := wire.BuildUDP(p.cfg.LocalIP, p.cfg.Dest, p.cfg.UDPSourcePort, dstPort, payload)
		return wire.UDPPortsKey(p.cfg.UDPSourcePort, dstPort), pkt

	case wire.ProtoTCP:
		srcPort := p.cfg.TCPSourceBasePort + (seq - p.cfg.MinSequence)
		pkt := wire.BuildTCPSYN(p.cfg.LocalIP, p.cfg.Dest, srcPort, p.cfg.TCPDestPort, uint32(seq))
		return wire.TCPTupleKey(srcPort, p.cfg.TCPDestPort, uint32(seq)), pkt

	default: // wire.ProtoICMP
		payloadLen := icmpPayloadLen(p.cfg.PacketSize)
		payload := wire.EchoPayload(p.cfg.PayloadPattern, payloadLen)
		pkt := wire.BuildICMPEcho(p.cfg.Identifier, seq, payload)
		return wire.ICMPEchoKey(p.cfg.Identifier, seq), pkt
	}
}

func icmpPayloadLen(packetSize uint16) int {
	const ipHdr, icmpHdr = 20, 8
	n := int(packetSize) - ipHdr - icmpHdr
	if n < 0 {
		return 0
	}
	return n
}

func udpPayloadLen(packetSize uint16) int {
	const ipHdr, udpHdr = 20, 8
	n := int(packetSize) - ipHdr - udpHdr
	if n < 0 {
		return 0
	}
	return n
}

// OnResponse matches an inbound Channel response to its in-flight probe,
// marking it Complete and returning the resulting StateEvent. ok is false
// when the correlation key is unknown (a stray from a previous round) or
// the matching slot has already been completed (the ECMP tie-break in
// spec.md §4.3: "the first is authoritative; subsequent ones are
// ignored").
func (p *Prober) OnResponse(resp *channel.Response) (Event, bool) {
	entry, ok := p.inflight[resp.Key]
	if !ok {
		return Event{}, false
	}

	probe := p.buffer[entry.ttl-1]
	if probe.Round != entry.round || probe.Status != StatusAwaitReply {
		// Stale slot (recycled by a later round) or already completed by
		// an earlier response to the same key.
		delete(p.inflight, resp.Key)
		return Event{}, false
	}

	probe.Status = StatusComplete
	probe.Host = resp.Host
	probe.ReceivedAt = resp.RecvAt
	probe.Kind = kindFromResponse(resp)

	p.buffer[entry.ttl-1] = probe
	delete(p.inflight, resp.Key)
	p.inFlightCount--

	if probe.Kind == KindEchoReply || resp.Reached || resp.Host.Equal(p.cfg.Dest) {
		if !p.targetReached || entry.ttl < p.targetReachedTTL {
			p.targetReached = true
			p.targetReachedTTL = entry.ttl
		}
	}

	return Event{TTL: entry.ttl, Kind: EventCompleted, Probe: probe}, true
}

func kindFromResponse(resp *channel.Response) CompleteKind {
	if resp.Reached {
		return KindEchoReply
	}
	switch resp.Kind {
	case wire.KindEchoReply:
		return KindEchoReply
	case wire.KindDestinationUnreachable:
		return KindDestinationUnreachable
	default:
		return KindTimeExceeded
	}
}

// EndRound marks every still-AwaitReply probe Complete with the synthetic
// "no response" status (bumping total_sent only, never total_recv, per
// spec.md §9's resolution of the accounting Open Question), and returns
// the resulting events.
func (p *Prober) EndRound() []Event {
	var events []Event
	for i := range p.buffer {
		probe := p.buffer[i]
		if probe.Round != p.round || probe.Status != StatusAwaitReply {
			continue
		}
		probe.Status = StatusComplete
		probe.Kind = KindNoResponse
		p.buffer[i] = probe
		events = append(events, Event{TTL: probe.TTL, Kind: EventCompleted, Probe: probe})
	}
	// Correlation entries for this round are left in the map: their keys
	// are round-specific (see allocSequence) so they can never collide
	// with the next round's keys, and OnResponse already treats a
	// non-AwaitReply slot as stale.
	p.inFlightCount = 0
	return events
}
