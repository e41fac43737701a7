package tracer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dtrace/trippy/internal/channel"
	"github.com/dtrace/trippy/internal/wire"
)

func baseTestConfig(dest net.IP) Config {
	cfg := DefaultConfig()
	cfg.Dest = dest
	cfg.MaxTTL = 5
	cfg.MinRoundDuration = 40 * time.Millisecond
	cfg.MaxRoundDuration = 200 * time.Millisecond
	cfg.GraceDuration = 15 * time.Millisecond
	cfg.ReadTimeout = MinReadTimeout
	cfg.MaxUnknownHops = 3
	return cfg
}

func TestConfigValidateRejectsFirstTTLAboveMax(t *testing.T) {
	cfg := baseTestConfig(net.ParseIP("203.0.113.1"))
	cfg.FirstTTL = 10
	cfg.MaxTTL = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted first_ttl > max_ttl")
	}
}

func TestConfigValidateRejectsUndersizedPacket(t *testing.T) {
	cfg := baseTestConfig(net.ParseIP("203.0.113.1"))
	cfg.PacketSize = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate accepted an undersized packet_size")
	}
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	cfg := baseTestConfig(net.ParseIP("203.0.113.1"))
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate rejected a sane config: %v", err)
	}
}

// Scenario 1 (spec.md §8), driven through the full Tracer.
func TestRunSingleHopReach(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	ch := channel.NewMemChannel(dest, map[int]channel.MemHop{
		1: {Host: dest, Latency: 2 * time.Millisecond, Reached: true},
	})
	defer ch.Close()

	cfg := baseTestConfig(dest)
	cfg.MaxTTL = 1
	tr := New(cfg, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(300 * time.Millisecond)
		tr.Shutdown()
	}()

	if err := tr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := tr.Snapshot()
	if len(snap.Hops) != 1 {
		t.Fatalf("got %d hops, want 1", len(snap.Hops))
	}
	if snap.Hops[0].TotalRecv == 0 {
		t.Fatal("hop never recorded a reply across any round")
	}
	if !snap.IsDone {
		t.Fatal("IsDone = false, want true")
	}
}

// Round duration bound property (spec.md §8): every completed round
// satisfies min_round_duration <= duration <= max_round_duration +
// read_timeout. We check this indirectly by bounding Run's total time
// for a fixed number of rounds via round_count deltas.
func TestRoundDurationBounds(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	// silent path: nothing ever responds, forcing max_round_duration or
	// the dead-path cutoff to end each round.
	ch := channel.NewMemChannel(dest, nil)
	defer ch.Close()

	cfg := baseTestConfig(dest)
	cfg.MaxTTL = 3
	cfg.MinRoundDuration = 20 * time.Millisecond
	cfg.MaxRoundDuration = 60 * time.Millisecond
	cfg.MaxUnknownHops = 2
	tr := New(cfg, ch)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	go func() {
		time.Sleep(250 * time.Millisecond)
		tr.Shutdown()
	}()
	if err := tr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)

	snap := tr.Snapshot()
	if snap.RoundCount == 0 {
		t.Fatal("no rounds completed")
	}
	maxExpected := time.Duration(snap.RoundCount+1) * (cfg.MaxRoundDuration + cfg.ReadTimeout*4)
	if elapsed > maxExpected {
		t.Fatalf("elapsed %v exceeds %d rounds worth of max_round_duration (%v)", elapsed, snap.RoundCount, maxExpected)
	}
}

func TestResetClearsSnapshotStatistics(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	ch := channel.NewMemChannel(dest, map[int]channel.MemHop{
		1: {Host: dest, Latency: time.Millisecond, Reached: true},
	})
	defer ch.Close()

	cfg := baseTestConfig(dest)
	cfg.MaxTTL = 1
	tr := New(cfg, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go func() {
		time.Sleep(150 * time.Millisecond)
		tr.Shutdown()
	}()
	if err := tr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tr.Reset()
	snap := tr.Snapshot()
	if snap.Hops[0].TotalSent != 0 || snap.Hops[0].TotalRecv != 0 {
		t.Fatalf("Reset left statistics non-zero: %+v", snap.Hops[0])
	}
}

// Scenario 6 (spec.md §8): a reply that reaches the destination well
// before grace_duration elapses must not end the round until
// min_round_duration has also elapsed, and the reply itself must still
// be folded into state even though it arrives inside the grace window.
func TestRunRoundExtendsToMinRoundDurationDespiteEarlyGrace(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	ch := channel.NewMemChannel(dest, map[int]channel.MemHop{
		1: {Host: dest, Latency: 2 * time.Millisecond, Reached: true},
	})
	defer ch.Close()

	cfg := baseTestConfig(dest)
	cfg.MaxTTL = 1
	cfg.GraceDuration = MinGraceDuration // as short as allowed
	cfg.MinRoundDuration = 150 * time.Millisecond
	cfg.MaxRoundDuration = 400 * time.Millisecond
	tr := New(cfg, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// The target replies within a couple of milliseconds and grace_duration
	// is tiny, so the only thing that can keep the round open is the
	// min_round_duration floor in runRound. Stop Run as soon as the second
	// round begins, which marks the first round's actual wall-clock length.
	start := time.Now()
	roundTwoStarted := make(chan struct{})
	go func() {
		for {
			if tr.Snapshot().RoundCount >= 2 {
				close(roundTwoStarted)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	go func() {
		<-roundTwoStarted
		tr.Shutdown()
	}()

	if err := tr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	firstRoundDuration := time.Since(start)

	if firstRoundDuration < cfg.MinRoundDuration {
		t.Fatalf("round ended after %v, short of min_round_duration %v, even though the target replied in %v and grace_duration was only %v",
			firstRoundDuration, cfg.MinRoundDuration, 2*time.Millisecond, cfg.GraceDuration)
	}

	snap := tr.Snapshot()
	if snap.Hops[0].TotalRecv == 0 {
		t.Fatal("a reply arriving inside the grace window was not folded into state")
	}
}

func TestNewWiresUDPAndTCPProtocols(t *testing.T) {
	dest := net.ParseIP("203.0.113.1")
	for _, proto := range []wire.Proto{wire.ProtoUDP, wire.ProtoTCP} {
		ch := channel.NewMemChannel(dest, map[int]channel.MemHop{
			1: {Host: dest, Latency: time.Millisecond, Reached: true},
		})
		cfg := baseTestConfig(dest)
		cfg.MaxTTL = 1
		cfg.Protocol = proto
		tr := New(cfg, ch)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		go func() {
			time.Sleep(150 * time.Millisecond)
			tr.Shutdown()
		}()
		if err := tr.Run(ctx); err != nil {
			t.Fatalf("Run (%v): %v", proto, err)
		}
		cancel()

		snap := tr.Snapshot()
		if snap.Hops[0].TotalRecv == 0 {
			t.Fatalf("protocol %v: never matched a simulated reply", proto)
		}
		ch.Close()
	}
}
