package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/dtrace/trippy/internal/state"
)

// CSVFormatter formats a snapshot as CSV.
type CSVFormatter struct {
	config  Config
	columns []string
}

var defaultCSVColumns = []string{
	"ttl", "addr", "hostname", "total_sent", "total_recv",
	"best_ms", "avg_ms", "worst_ms", "stddev_ms", "loss_percent",
}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(config Config) *CSVFormatter {
	return &CSVFormatter{config: config, columns: defaultCSVColumns}
}

// SetColumns allows customizing which columns to include.
func (f *CSVFormatter) SetColumns(columns []string) { f.columns = columns }

// Format formats the snapshot as CSV.
func (f *CSVFormatter) Format(dest string, snap state.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(f.columns); err != nil {
		return nil, err
	}

	for i := range snap.Hops {
		if err := writer.Write(f.formatRow(&snap.Hops[i])); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (f *CSVFormatter) formatRow(hop *state.Hop) []string {
	row := make([]string, len(f.columns))
	for i, col := range f.columns {
		row[i] = f.getValue(hop, col)
	}
	return row
}

func (f *CSVFormatter) getValue(hop *state.Hop, column string) string {
	switch column {
	case "ttl":
		return strconv.Itoa(hop.TTL)
	case "addr":
		if len(hop.Addrs) > 0 {
			return hop.Addrs[0].IP.String()
		}
		return "*"
	case "hostname":
		if len(hop.Addrs) > 0 {
			return f.config.Resolver.Lookup(context.Background(), hop.Addrs[0].IP)
		}
		return ""
	case "total_sent":
		return strconv.Itoa(hop.TotalSent)
	case "total_recv":
		return strconv.Itoa(hop.TotalRecv)
	case "best_ms":
		return formatFloat(toMs(hop.Best))
	case "avg_ms":
		return formatFloat(toMs(hop.Mean))
	case "worst_ms":
		return formatFloat(toMs(hop.Worst))
	case "stddev_ms":
		return formatFloat(toMs(hop.StdDev()))
	case "loss_percent":
		return formatFloat(hop.LossPct() * 100)
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if f <= 0 {
		return "0.000"
	}
	return fmt.Sprintf("%.3f", f)
}

// ContentType returns the MIME type for CSV output.
func (f *CSVFormatter) ContentType() string { return "text/csv" }

// FileExtension returns the file extension for CSV output.
func (f *CSVFormatter) FileExtension() string { return "csv" }
