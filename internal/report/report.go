// Package report provides formatting and output functionality for
// tracer snapshots in batch (non-interactive) mode.
package report

import (
	"github.com/dtrace/trippy/internal/resolve"
	"github.com/dtrace/trippy/internal/state"
)

// Format represents the output format type.
type Format int

const (
	// FormatText is the classic traceroute-style output.
	FormatText Format = iota
	// FormatTable is the detailed table output.
	FormatTable
	// FormatJSON is JSON output.
	FormatJSON
	// FormatCSV is CSV output.
	FormatCSV
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatTable:
		return "table"
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	default:
		return "unknown"
	}
}

// Formatter defines the interface for snapshot formatters.
type Formatter interface {
	// Format converts a Snapshot to formatted output bytes.
	Format(dest string, snap state.Snapshot) ([]byte, error)

	// ContentType returns the MIME type for the output.
	ContentType() string

	// FileExtension returns the typical file extension for the output.
	FileExtension() string
}

// Config holds configuration shared across formatters.
type Config struct {
	// Colors enables ANSI color output.
	Colors bool

	// Resolver resolves hop addresses to hostnames. It must be non-nil:
	// formatters call it without checking. resolve.Noop{} disables
	// hostname display.
	Resolver resolve.Resolver

	// Width is the terminal width (0 = auto-detect, unused by
	// formatters that don't wrap).
	Width int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Colors:   true,
		Resolver: resolve.Noop{},
		Width:    0,
	}
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format Format, config Config) Formatter {
	switch format {
	case FormatTable:
		return NewTableFormatter(config)
	case FormatJSON:
		return NewJSONFormatter(config)
	case FormatCSV:
		return NewCSVFormatter(config)
	default:
		return NewTextFormatter(config)
	}
}
