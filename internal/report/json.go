package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dtrace/trippy/internal/state"
)

// JSONFormatter formats a snapshot as JSON.
type JSONFormatter struct {
	config Config
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(config Config) *JSONFormatter {
	return &JSONFormatter{config: config, pretty: true}
}

// NewJSONFormatterCompact creates a JSON formatter with compact output.
func NewJSONFormatterCompact(config Config) *JSONFormatter {
	return &JSONFormatter{config: config, pretty: false}
}

// SetPretty enables or disables pretty-printing.
func (f *JSONFormatter) SetPretty(pretty bool) { f.pretty = pretty }

// Format formats the snapshot as JSON.
func (f *JSONFormatter) Format(dest string, snap state.Snapshot) ([]byte, error) {
	output := f.toJSONOutput(dest, snap)
	if f.pretty {
		return json.MarshalIndent(output, "", "  ")
	}
	return json.Marshal(output)
}

// JSONOutput is the JSON-serializable representation of a snapshot.
type JSONOutput struct {
	Target     string    `json:"target"`
	RoundCount int       `json:"round_count"`
	Done       bool      `json:"done"`
	Hops       []JSONHop `json:"hops"`
}

// JSONHop represents a single hop in JSON format.
type JSONHop struct {
	TTL         int      `json:"ttl"`
	Addrs       []string `json:"addrs"`
	Hostname    string   `json:"hostname,omitempty"`
	TotalSent   int      `json:"total_sent"`
	TotalRecv   int      `json:"total_recv"`
	BestMs      float64  `json:"best_ms"`
	AvgMs       float64  `json:"avg_ms"`
	WorstMs     float64  `json:"worst_ms"`
	StdDevMs    float64  `json:"stddev_ms"`
	LossPercent float64  `json:"loss_percent"`
}

func (f *JSONFormatter) toJSONOutput(dest string, snap state.Snapshot) *JSONOutput {
	out := &JSONOutput{
		Target:     dest,
		RoundCount: snap.RoundCount,
		Done:       snap.IsDone,
		Hops:       make([]JSONHop, len(snap.Hops)),
	}
	for i := range snap.Hops {
		out.Hops[i] = f.toJSONHop(&snap.Hops[i])
	}
	return out
}

func (f *JSONFormatter) toJSONHop(hop *state.Hop) JSONHop {
	jh := JSONHop{
		TTL:         hop.TTL,
		TotalSent:   hop.TotalSent,
		TotalRecv:   hop.TotalRecv,
		BestMs:      toMs(hop.Best),
		AvgMs:       toMs(hop.Mean),
		WorstMs:     toMs(hop.Worst),
		StdDevMs:    toMs(hop.StdDev()),
		LossPercent: hop.LossPct() * 100,
	}

	for _, a := range hop.Addrs {
		jh.Addrs = append(jh.Addrs, a.IP.String())
	}
	if len(hop.Addrs) > 0 {
		jh.Hostname = f.config.Resolver.Lookup(context.Background(), hop.Addrs[0].IP)
	}

	return jh
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ContentType returns the MIME type for JSON output.
func (f *JSONFormatter) ContentType() string { return "application/json" }

// FileExtension returns the file extension for JSON output.
func (f *JSONFormatter) FileExtension() string { return "json" }
