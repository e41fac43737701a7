package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/dtrace/trippy/internal/state"
)

// TableFormatter formats a snapshot as a detailed table.
type TableFormatter struct {
	config Config
	colors *ColorScheme
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(config Config) *TableFormatter {
	var colors *ColorScheme
	if config.Colors {
		colors = DefaultColorScheme()
	}
	return &TableFormatter{config: config, colors: colors}
}

// Format formats the snapshot as a detailed table.
func (f *TableFormatter) Format(dest string, snap state.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	f.writeHeader(&buf, dest, snap)

	table := tablewriter.NewWriter(&buf)
	f.configureTable(table)
	table.SetHeader([]string{"Hop", "Address", "Best", "Avg", "Worst", "StdDev", "Loss"})

	for i := range snap.Hops {
		table.Append(f.formatHopRow(&snap.Hops[i]))
	}

	table.Render()

	return buf.Bytes(), nil
}

func (f *TableFormatter) writeHeader(buf *bytes.Buffer, dest string, snap state.Snapshot) {
	header := fmt.Sprintf("Target: %s\n", dest)
	header += fmt.Sprintf("Rounds: %d | Done: %v\n\n", snap.RoundCount, snap.IsDone)
	if f.colors != nil {
		header = f.colors.Header.Sprint(header)
	}
	buf.WriteString(header)
}

func (f *TableFormatter) configureTable(table *tablewriter.Table) {
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
}

func (f *TableFormatter) formatHopRow(hop *state.Hop) []string {
	row := []string{fmt.Sprintf("%d", hop.TTL)}

	if hop.TotalRecv == 0 {
		return append(row, "*", "-", "-", "-", "-", "100%")
	}

	addr := "-"
	if len(hop.Addrs) > 0 {
		addr = hop.Addrs[0].IP.String()
		if hostname := f.config.Resolver.Lookup(context.Background(), hop.Addrs[0].IP); hostname != "" {
			addr = fmt.Sprintf("%s (%s)", hostname, addr)
		}
		if len(hop.Addrs) > 1 {
			addr = fmt.Sprintf("%s +%d", addr, len(hop.Addrs)-1)
		}
	}

	row = append(row, addr,
		formatMs(hop.Best), formatMs(hop.Mean), formatMs(hop.Worst), formatMs(hop.StdDev()),
		fmt.Sprintf("%.0f%%", hop.LossPct()*100))
	return row
}

func formatMs(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d)/float64(time.Millisecond))
}

// ContentType returns the MIME type for table output.
func (f *TableFormatter) ContentType() string { return "text/plain" }

// FileExtension returns the file extension for table output.
func (f *TableFormatter) FileExtension() string { return "txt" }
