package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/dtrace/trippy/internal/state"
)

// TextFormatter formats a snapshot in classic traceroute style.
type TextFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(config Config) *TextFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}
	return &TextFormatter{config: config, colors: colors}
}

// Format formats the snapshot as classic traceroute text output.
func (f *TextFormatter) Format(dest string, snap state.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "trippy to %s, %d hops max\n\n", dest, len(snap.Hops))

	for i := range snap.Hops {
		f.formatHop(&buf, &snap.Hops[i])
	}

	buf.WriteString("\n")
	if snap.IsDone {
		fmt.Fprintf(&buf, "Trace complete after %d rounds\n", snap.RoundCount)
	} else {
		fmt.Fprintf(&buf, "Trace incomplete after %d hops, %d rounds\n", len(snap.Hops), snap.RoundCount)
	}

	return buf.Bytes(), nil
}

// FormatHop formats a single hop and returns it as a string, for
// streaming output as each round folds new statistics in.
func (f *TextFormatter) FormatHop(hop *state.Hop) string {
	var buf bytes.Buffer
	f.formatHop(&buf, hop)
	return buf.String()
}

func (f *TextFormatter) formatHop(buf *bytes.Buffer, hop *state.Hop) {
	hopNum := fmt.Sprintf("%3d  ", hop.TTL)
	if f.colors != nil {
		hopNum = f.colors.Hop.Sprint(hopNum)
	}
	buf.WriteString(hopNum)

	if hop.TotalRecv == 0 {
		timeout := "* * *"
		if f.colors != nil {
			timeout = f.colors.Timeout.Sprint(timeout)
		}
		buf.WriteString(timeout)
		buf.WriteString("\n")
		return
	}

	for i, addr := range hop.Addrs {
		if i > 0 {
			buf.WriteString("\n     ")
		}
		ipStr := addr.IP.String()
		if f.colors != nil {
			ipStr = f.colors.IP.Sprint(ipStr)
		}

		hostname := f.config.Resolver.Lookup(context.Background(), addr.IP)
		if hostname != "" {
			if f.colors != nil {
				hostname = f.colors.Hostname.Sprint(hostname)
			}
			fmt.Fprintf(buf, "%s (%s)  ", hostname, ipStr)
		} else {
			fmt.Fprintf(buf, "%s  ", ipStr)
		}
	}

	fmt.Fprintf(buf, "%s  ", f.colorizeRTT(hop.Best))
	fmt.Fprintf(buf, "%s  ", f.colorizeRTT(hop.Mean))
	fmt.Fprintf(buf, "%s  ", f.colorizeRTT(hop.Worst))
	fmt.Fprintf(buf, "%.0f%% loss", hop.LossPct()*100)

	buf.WriteString("\n")
}

func (f *TextFormatter) colorizeRTT(rtt time.Duration) string {
	str := fmt.Sprintf("%.3f ms", float64(rtt)/float64(time.Millisecond))
	if f.colors == nil {
		return str
	}

	ms := float64(rtt) / float64(time.Millisecond)
	switch {
	case ms < 50:
		return f.colors.RTTLow.Sprint(str)
	case ms < 150:
		return f.colors.RTTMed.Sprint(str)
	default:
		return f.colors.RTTHigh.Sprint(str)
	}
}

// ContentType returns the MIME type for text output.
func (f *TextFormatter) ContentType() string { return "text/plain" }

// FileExtension returns the file extension for text output.
func (f *TextFormatter) FileExtension() string { return "txt" }

// ColorScheme defines colors for different output elements.
type ColorScheme struct {
	Hop      *color.Color
	IP       *color.Color
	Hostname *color.Color
	RTTLow   *color.Color // < 50ms
	RTTMed   *color.Color // 50-150ms
	RTTHigh  *color.Color // >= 150ms
	Timeout  *color.Color
	Header   *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Hop:      color.New(color.FgCyan, color.Bold),
		IP:       color.New(color.FgWhite),
		Hostname: color.New(color.FgGreen),
		RTTLow:   color.New(color.FgGreen),
		RTTMed:   color.New(color.FgYellow),
		RTTHigh:  color.New(color.FgRed),
		Timeout:  color.New(color.FgRed, color.Bold),
		Header:   color.New(color.FgWhite, color.Bold),
	}
}
