package tracer

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/dtrace/trippy/internal/channel"
	"github.com/dtrace/trippy/internal/prober"
	"github.com/dtrace/trippy/internal/state"
)

// Tracer is the round driver: the external interface spec.md §6 names
// (run/snapshot/reset/shutdown). It owns the Channel and Prober
// exclusively on the goroutine that calls Run; State is shared with
// reader goroutines via its own mutex (spec.md §5).
type Tracer struct {
	cfg Config
	ch  channel.Channel
	prb *prober.Prober
	st  *state.State

	shutdown atomic.Bool
}

// New constructs a Tracer from cfg and ch. cfg must already satisfy
// Validate; New does not call it implicitly so callers can choose where
// the fatal ConfigError surfaces.
func New(cfg Config, ch channel.Channel) *Tracer {
	prb := prober.New(prober.Config{
		Dest:              cfg.Dest,
		Protocol:          cfg.Protocol,
		FirstTTL:          cfg.FirstTTL,
		MaxTTL:            cfg.MaxTTL,
		MinSequence:       cfg.MinSequence,
		MaxInflight:       cfg.MaxInflight,
		Identifier:        uint16(os.Getpid() & 0xffff),
		PacketSize:        cfg.PacketSize,
		PayloadPattern:    cfg.PayloadPattern,
		UDPSourcePort:     cfg.SourcePort,
		UDPDestBasePort:   firstNonZero(cfg.DestPort, 33434),
		TCPSourceBasePort: firstNonZero(cfg.SourcePort, 40000),
		TCPDestPort:       firstNonZero(cfg.DestPort, 80),
	}, ch)

	st := state.New(state.Config{
		Dest:       cfg.Dest,
		FirstTTL:   cfg.FirstTTL,
		MaxTTL:     cfg.MaxTTL,
		MaxSamples: cfg.MaxSamples,
	})

	return &Tracer{cfg: cfg, ch: ch, prb: prb, st: st}
}

func firstNonZero(v, fallback uint16) uint16 {
	if v != 0 {
		return v
	}
	return fallback
}

// Run blocks, driving rounds until ctx is cancelled or Shutdown is
// called. It returns nil on a clean cancellation and a non-nil error
// only for a fatal RecvError (spec.md §7).
func (t *Tracer) Run(ctx context.Context) error {
	round := 0
	for {
		if ctx.Err() != nil || t.shutdown.Load() {
			return nil
		}
		if err := t.runRound(ctx, round); err != nil {
			return err
		}
		round++
	}
}

// runRound drives a single round to completion: emit, poll, fold, and
// evaluate the three round-end conditions in spec.md §4.5.
func (t *Tracer) runRound(ctx context.Context, round int) error {
	t.prb.BeginRound(round)
	t.st.BeginRound()

	roundStart := time.Now()
	var targetReachedAt time.Time
	haveTargetReachedAt := false

	for {
		if ctx.Err() != nil || t.shutdown.Load() {
			t.foldEvents(t.prb.EndRound())
			return nil
		}

		if !t.prb.Done() {
			events, err := t.prb.Tick(ctx)
			t.foldEvents(events)
			if err != nil {
				// Per-probe send failures are recorded against the probe
				// (NotSent) and never abort the tracer (spec.md §7).
				_ = err
			}
		}

		resp, err := t.ch.RecvProbeResponse(t.cfg.ReadTimeout)
		if err != nil {
			t.foldEvents(t.prb.EndRound())
			return &RecvError{Err: err}
		}
		if resp != nil {
			if ev, ok := t.prb.OnResponse(resp); ok {
				t.foldEvents([]prober.Event{ev})
				if !haveTargetReachedAt {
					if _, reached := t.prb.TargetReached(); reached {
						targetReachedAt = time.Now()
						haveTargetReachedAt = true
					}
				}
			}
		}

		elapsed := time.Since(roundStart)

		if elapsed >= t.cfg.MaxRoundDuration {
			break
		}

		if haveTargetReachedAt &&
			time.Since(targetReachedAt) >= t.cfg.GraceDuration &&
			elapsed >= t.cfg.MinRoundDuration {
			break
		}

		if elapsed >= t.cfg.MinRoundDuration &&
			t.prb.ConsecutiveUnknownHops() >= t.cfg.MaxUnknownHops {
			break
		}
	}

	t.foldEvents(t.prb.EndRound())
	return nil
}

func (t *Tracer) foldEvents(events []prober.Event) {
	for _, ev := range events {
		t.st.Fold(ev)
	}
}

// Snapshot returns an immutable view of the current per-hop statistics.
func (t *Tracer) Snapshot() state.Snapshot {
	return t.st.Snapshot()
}

// Reset clears all hop statistics without affecting round_count or the
// running tracer.
func (t *Tracer) Reset() {
	t.st.Reset()
}

// Shutdown requests that Run return after the current round-loop
// iteration. Cooperative, bounded by ReadTimeout (spec.md §5).
func (t *Tracer) Shutdown() {
	t.shutdown.Store(true)
}

// Close releases the underlying Channel's sockets.
func (t *Tracer) Close() error {
	return t.ch.Close()
}
