package state

import (
	"net"
	"sync"

	"github.com/dtrace/trippy/internal/prober"
)

// Config is the subset of Configuration (spec.md §3) State needs.
type Config struct {
	Dest       net.IP
	FirstTTL   uint8
	MaxTTL     uint8
	MaxSamples int // bounded RTT ring size per hop
}

// State is the observable per-hop statistics store. It is shared between
// the tracer thread (sole writer, via Fold) and any number of reader
// threads (via Snapshot), guarded by a single mutex — spec.md §5's "no
// lock ordering hazards because only one mutex is held at any time".
type State struct {
	mu sync.Mutex

	cfg Config

	hops []*Hop // index ttl - first_ttl

	roundCount int

	targetReachedTTL int // 0 means "not yet reached this lifetime"
	highestResponded int // 0 means "no hop has ever responded"
}

// New builds an empty State for cfg.
func New(cfg Config) *State {
	n := int(cfg.MaxTTL) - int(cfg.FirstTTL) + 1
	hops := make([]*Hop, n)
	for i := range hops {
		hops[i] = newHop(int(cfg.FirstTTL)+i, cfg.MaxSamples)
	}
	return &State{cfg: cfg, hops: hops}
}

// Fold applies one prober.Event to the hop it names, under the lock —
// the "exclusive lock held for the duration of the fold for a single
// event" discipline spec.md §4.4 calls the simplest acceptable one.
func (s *State) Fold(ev prober.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.hopLocked(ev.TTL)
	if h == nil {
		return
	}

	switch ev.Kind {
	case prober.EventSent:
		h.recordSent()

	case prober.EventCompleted:
		s.foldCompletedLocked(h, ev.Probe)
	}
}

func (s *State) foldCompletedLocked(h *Hop, p prober.Probe) {
	switch p.Status {
	case prober.StatusSkipped, prober.StatusNotSent:
		return // neither total_sent nor total_recv change (spec.md §4.5, §8 scenario 5)
	}

	if p.Kind == prober.KindNoResponse {
		return // total_sent was already bumped at emission; total_recv must not move
	}

	h.recordRTT(p.Host, p.RTT())

	if int(h.TTL) > s.highestResponded {
		s.highestResponded = h.TTL
	}

	if p.Kind == prober.KindEchoReply || p.Host.Equal(s.cfg.Dest) {
		if s.targetReachedTTL == 0 || h.TTL < s.targetReachedTTL {
			s.targetReachedTTL = h.TTL
		}
	}
}

func (s *State) hopLocked(ttl uint8) *Hop {
	idx := int(ttl) - int(s.cfg.FirstTTL)
	if idx < 0 || idx >= len(s.hops) {
		return nil
	}
	return s.hops[idx]
}

// BeginRound marks the start of a new round for bookkeeping purposes
// (round_count lives here, not in the Prober, per spec.md §3's "round_count
// continues monotonically" note keeping it tied to State's reset
// behavior).
func (s *State) BeginRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundCount++
}

// Reset atomically clears every hop's statistics. round_count is
// untouched: resets affect statistics, not the round timeline's identity
// (spec.md §3).
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.hops {
		h.reset()
	}
	s.targetReachedTTL = 0
	s.highestResponded = 0
}

// Snapshot is an immutable, internally consistent view of per-hop
// statistics (spec.md §3/§4.4).
type Snapshot struct {
	Hops       []Hop
	IsDone     bool
	RoundCount int
}

// Snapshot copies the current hop prefix under the lock. The prefix runs
// from first_ttl up to the TTL at which the destination first replied
// this lifetime, or — if it never has — up to the highest TTL that has
// ever produced any response, or max_ttl if neither has happened yet.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	upper := int(s.cfg.MaxTTL)
	done := false
	if s.targetReachedTTL != 0 {
		upper = s.targetReachedTTL
		done = true
	} else if s.highestResponded != 0 {
		upper = s.highestResponded
	}

	n := upper - int(s.cfg.FirstTTL) + 1
	if n < 0 {
		n = 0
	}
	if n > len(s.hops) {
		n = len(s.hops)
	}

	out := make([]Hop, n)
	for i := 0; i < n; i++ {
		out[i] = s.hops[i].clone()
	}

	return Snapshot{
		Hops:       out,
		IsDone:     done,
		RoundCount: s.roundCount,
	}
}
