package state

import (
	"net"
	"testing"
	"time"

	"github.com/dtrace/trippy/internal/prober"
)

func testState(firstTTL, maxTTL uint8, dest net.IP) *State {
	return New(Config{
		Dest:       dest,
		FirstTTL:   firstTTL,
		MaxTTL:     maxTTL,
		MaxSamples: 8,
	})
}

func sentEvent(ttl uint8) prober.Event {
	return prober.Event{TTL: ttl, Kind: prober.EventSent, Probe: prober.Probe{TTL: ttl, Status: prober.StatusAwaitReply}}
}

func completedEvent(ttl uint8, kind prober.CompleteKind, host net.IP, rtt time.Duration) prober.Event {
	base := time.Unix(0, 0)
	return prober.Event{
		TTL: ttl,
		Kind: prober.EventCompleted,
		Probe: prober.Probe{
			TTL:        ttl,
			Status:     prober.StatusComplete,
			Kind:       kind,
			Host:       host,
			SentAt:     base,
			ReceivedAt: base.Add(rtt),
		},
	}
}

func noResponseEvent(ttl uint8) prober.Event {
	return prober.Event{
		TTL:  ttl,
		Kind: prober.EventCompleted,
		Probe: prober.Probe{
			TTL:    ttl,
			Status: prober.StatusComplete,
			Kind:   prober.KindNoResponse,
		},
	}
}

func skippedEvent(ttl uint8) prober.Event {
	return prober.Event{
		TTL:  ttl,
		Kind: prober.EventCompleted,
		Probe: prober.Probe{TTL: ttl, Status: prober.StatusSkipped},
	}
}

// Scenario 1: single-hop reach.
func TestSingleHopReach(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	s := testState(1, 1, dest)

	s.Fold(sentEvent(1))
	s.Fold(completedEvent(1, prober.KindEchoReply, dest, 5*time.Millisecond))

	snap := s.Snapshot()
	if len(snap.Hops) != 1 {
		t.Fatalf("got %d hops, want 1", len(snap.Hops))
	}
	h := snap.Hops[0]
	if h.LossPct() != 0 {
		t.Fatalf("loss_pct = %v, want 0", h.LossPct())
	}
	if h.Best != 5*time.Millisecond || h.Worst != 5*time.Millisecond || h.Last != 5*time.Millisecond {
		t.Fatalf("best/worst/last = %v/%v/%v, want all 5ms", h.Best, h.Worst, h.Last)
	}
	if !snap.IsDone {
		t.Fatal("IsDone = false, want true")
	}
}

// Scenario 2: three-hop clean path.
func TestThreeHopCleanPath(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	a := net.ParseIP("198.51.100.1")
	b := net.ParseIP("198.51.100.2")
	s := testState(1, 3, dest)

	for ttl := uint8(1); ttl <= 3; ttl++ {
		s.Fold(sentEvent(ttl))
	}
	s.Fold(completedEvent(1, prober.KindTimeExceeded, a, 10*time.Millisecond))
	s.Fold(completedEvent(2, prober.KindTimeExceeded, b, 20*time.Millisecond))
	s.Fold(completedEvent(3, prober.KindEchoReply, dest, 30*time.Millisecond))

	snap := s.Snapshot()
	if len(snap.Hops) != 3 {
		t.Fatalf("got %d hops, want 3", len(snap.Hops))
	}
	for _, h := range snap.Hops {
		if h.TotalSent != 1 || h.TotalRecv != 1 {
			t.Fatalf("ttl %d: sent/recv = %d/%d, want 1/1", h.TTL, h.TotalSent, h.TotalRecv)
		}
	}
	if !snap.Hops[0].Addrs[0].IP.Equal(a) || !snap.Hops[1].Addrs[0].IP.Equal(b) || !snap.Hops[2].Addrs[0].IP.Equal(dest) {
		t.Fatal("addresses not recorded in order")
	}
}

// Scenario 3: silent hop across 5 rounds.
func TestSilentHopAcrossRounds(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	a := net.ParseIP("198.51.100.1")
	c := net.ParseIP("198.51.100.3")
	s := testState(1, 3, dest)

	for round := 0; round < 5; round++ {
		s.Fold(sentEvent(1))
		s.Fold(completedEvent(1, prober.KindTimeExceeded, a, 10*time.Millisecond))

		s.Fold(sentEvent(2))
		s.Fold(noResponseEvent(2))

		s.Fold(sentEvent(3))
		s.Fold(completedEvent(3, prober.KindTimeExceeded, c, 30*time.Millisecond))
	}

	snap := s.Snapshot()
	hop2 := findHop(t, snap, 2)
	if hop2.TotalSent != 5 || hop2.TotalRecv != 0 {
		t.Fatalf("hop 2: sent/recv = %d/%d, want 5/0", hop2.TotalSent, hop2.TotalRecv)
	}
	if hop2.LossPct() != 1.0 {
		t.Fatalf("hop 2 loss_pct = %v, want 1.0", hop2.LossPct())
	}
	hop1 := findHop(t, snap, 1)
	hop3 := findHop(t, snap, 3)
	if hop1.TotalSent != 5 || hop1.TotalRecv != 5 {
		t.Fatalf("hop 1 unaffected by hop 2's silence: got %d/%d", hop1.TotalSent, hop1.TotalRecv)
	}
	if hop3.TotalSent != 5 || hop3.TotalRecv != 5 {
		t.Fatalf("hop 3 unaffected by hop 2's silence: got %d/%d", hop3.TotalSent, hop3.TotalRecv)
	}
}

// Scenario 4: flaky hop alternating between two addresses.
func TestFlakyHopTwoAddresses(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	a := net.ParseIP("198.51.100.1")
	b := net.ParseIP("198.51.100.2")
	s := testState(1, 2, dest)

	for round := 0; round < 10; round++ {
		host := a
		if round%2 == 1 {
			host = b
		}
		s.Fold(sentEvent(2))
		s.Fold(completedEvent(2, prober.KindTimeExceeded, host, 15*time.Millisecond))
	}

	snap := s.Snapshot()
	hop2 := findHop(t, snap, 2)
	if len(hop2.Addrs) != 2 {
		t.Fatalf("got %d addrs, want 2", len(hop2.Addrs))
	}
	sum := 0
	for _, ad := range hop2.Addrs {
		sum += ad.Count
	}
	if sum != hop2.TotalRecv {
		t.Fatalf("addr counts sum to %d, total_recv = %d", sum, hop2.TotalRecv)
	}
}

// Scenario 5: early target reply marks remaining TTLs Skipped, not
// NotSent, and their total_sent must not increase.
func TestEarlyTargetReplySkipsRemaining(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	s := testState(1, 10, dest)

	s.Fold(sentEvent(1))
	s.Fold(completedEvent(1, prober.KindTimeExceeded, net.ParseIP("198.51.100.1"), 5*time.Millisecond))

	s.Fold(sentEvent(2))
	s.Fold(completedEvent(2, prober.KindEchoReply, dest, 10*time.Millisecond))

	for ttl := uint8(3); ttl <= 10; ttl++ {
		s.Fold(skippedEvent(ttl))
	}

	snap := s.Snapshot()
	if len(snap.Hops) != 2 {
		t.Fatalf("snapshot includes %d hops, want 2 (prefix stops at reached TTL)", len(snap.Hops))
	}
	if !snap.IsDone {
		t.Fatal("IsDone = false, want true")
	}
	for _, h := range s.hops[2:] {
		if h.TotalSent != 0 {
			t.Fatalf("skipped ttl %d: total_sent = %d, want 0", h.TTL, h.TotalSent)
		}
	}
}

// Invariant checks across all scenarios already exercised above, plus a
// direct check that Reset clears statistics without losing hop identity.
func TestResetClearsStatisticsKeepsIdentity(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	s := testState(1, 2, dest)

	s.Fold(sentEvent(1))
	s.Fold(completedEvent(1, prober.KindEchoReply, dest, 5*time.Millisecond))
	s.BeginRound()

	s.Reset()

	snap := s.Snapshot()
	// Nothing has ever responded post-reset, so the prefix falls back to
	// max_ttl.
	if len(snap.Hops) != 2 {
		t.Fatalf("got %d hops after reset, want 2 (max_ttl fallback)", len(snap.Hops))
	}
	for _, h := range snap.Hops {
		if h.TotalSent != 0 || h.TotalRecv != 0 || len(h.Addrs) != 0 {
			t.Fatalf("hop %d not cleared: %+v", h.TTL, h)
		}
	}
	if snap.RoundCount != 1 {
		t.Fatalf("RoundCount = %d, want 1 (unaffected by Reset)", snap.RoundCount)
	}
}

func findHop(t *testing.T, snap Snapshot, ttl int) Hop {
	t.Helper()
	for _, h := range snap.Hops {
		if h.TTL == ttl {
			return h
		}
	}
	t.Fatalf("no hop with ttl %d in snapshot", ttl)
	return Hop{}
}
