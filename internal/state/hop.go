// Package state folds prober.Events into per-hop statistics and publishes
// immutable snapshots to consumers (TUI, reporters). It is the
// observable store: the Tracer Loop is its sole writer, readers take the
// lock only to copy a snapshot (spec.md §4.4/§9).
package state

import (
	"math"
	"net"
	"time"
)

// Addr is one distinct address observed replying at a given TTL, in
// first-seen order, with a hit counter (spec.md §3 "addrs").
type Addr struct {
	IP    net.IP
	Count int
}

// Hop is the aggregated per-TTL statistics record (spec.md §3).
type Hop struct {
	TTL int

	Addrs []Addr

	TotalSent int
	TotalRecv int

	Last  time.Duration
	Best  time.Duration
	Worst time.Duration
	Mean  time.Duration
	M2    float64 // Welford running sum of squared deviations, in nanoseconds^2
	Count int

	Samples []time.Duration // bounded ring, most recent first

	maxSamples int
}

// LossPct returns 1 - total_recv/total_sent, or 0 when nothing has been
// sent yet.
func (h *Hop) LossPct() float64 {
	if h.TotalSent == 0 {
		return 0
	}
	return 1 - float64(h.TotalRecv)/float64(h.TotalSent)
}

// StdDev returns the sample standard deviation of the RTT distribution
// observed at this hop, derived from the Welford accumulator.
func (h *Hop) StdDev() time.Duration {
	if h.Count < 2 {
		return 0
	}
	variance := h.M2 / float64(h.Count-1)
	if variance < 0 {
		variance = 0
	}
	return time.Duration(math.Sqrt(variance))
}

func newHop(ttl int, maxSamples int) *Hop {
	return &Hop{TTL: ttl, maxSamples: maxSamples}
}

// recordSent increments total_sent. Called on prober.EventSent.
func (h *Hop) recordSent() {
	h.TotalSent++
}

// recordRTT folds one successful reply into the hop's statistics:
// address bookkeeping, online mean/variance (Welford), last/best/worst,
// and the bounded sample ring. Called on prober.EventCompleted when the
// probe actually received a reply (not Skipped or a synthetic
// no-response).
func (h *Hop) recordRTT(addr net.IP, rtt time.Duration) {
	h.TotalRecv++
	h.mergeAddr(addr)

	h.Last = rtt
	if h.Count == 0 || rtt < h.Best {
		h.Best = rtt
	}
	if rtt > h.Worst {
		h.Worst = rtt
	}

	h.Count++
	delta := float64(rtt - h.Mean)
	h.Mean += time.Duration(delta / float64(h.Count))
	delta2 := float64(rtt - h.Mean)
	h.M2 += delta * delta2

	h.pushSample(rtt)
}

func (h *Hop) mergeAddr(addr net.IP) {
	if addr == nil {
		return
	}
	for i := range h.Addrs {
		if h.Addrs[i].IP.Equal(addr) {
			h.Addrs[i].Count++
			return
		}
	}
	h.Addrs = append(h.Addrs, Addr{IP: addr, Count: 1})
}

func (h *Hop) pushSample(rtt time.Duration) {
	n := h.maxSamples
	if n <= 0 {
		return
	}
	h.Samples = append([]time.Duration{rtt}, h.Samples...)
	if len(h.Samples) > n {
		h.Samples = h.Samples[:n]
	}
}

// clone returns a deep copy suitable for inclusion in a Snapshot: safe to
// read without the State lock.
func (h *Hop) clone() Hop {
	cp := *h
	cp.Addrs = append([]Addr(nil), h.Addrs...)
	cp.Samples = append([]time.Duration(nil), h.Samples...)
	return cp
}

// reset clears this hop's statistics in place, keeping its TTL identity.
func (h *Hop) reset() {
	ttl, maxSamples := h.TTL, h.maxSamples
	*h = Hop{TTL: ttl, maxSamples: maxSamples}
}
