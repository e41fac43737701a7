// Package tui provides an interactive terminal UI for traceroute.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dtrace/trippy/internal/resolve"
	"github.com/dtrace/trippy/internal/state"
	"github.com/dtrace/trippy/internal/tracer"
)

// Refresh rate bounds recovered from original_source's TUI layer, where
// the distilled spec leaves the polling interval unspecified
// (SPEC_FULL.md §11).
const (
	MinTUIRefreshRate = 50 * time.Millisecond
	MaxTUIRefreshRate = 1000 * time.Millisecond

	defaultTUIRefreshRate = 250 * time.Millisecond
)

// State represents the current state of the TUI.
type State int

const (
	StateRunning State = iota
	StateComplete
	StateError
)

// Model is the Bubble Tea model for the traceroute TUI. Unlike a
// callback-fed design, it polls tracer.Tracer.Snapshot() on a tick: the
// Tracer exposes no per-hop hook, only a point-in-time view.
type Model struct {
	// Configuration
	target      string
	tr          *tracer.Tracer
	resolver    resolve.Resolver
	refreshRate time.Duration
	width       int
	height      int

	cancel context.CancelFunc

	// State
	state     State
	snap      state.Snapshot
	err       error
	elapsed   time.Duration
	startTime time.Time

	// UI components
	spinner spinner.Model

	// Styles
	styles Styles
}

// CompleteMsg is sent when the trace's Run call returns.
type CompleteMsg struct{}

// ErrorMsg is sent when the trace's Run call returns a fatal error.
type ErrorMsg struct {
	Err error
}

// TickMsg is sent to update elapsed time and poll the latest snapshot.
type TickMsg time.Time

// New creates a new TUI model. tr must not yet have Run called on it;
// the model starts it in the background on Init.
func New(target string, tr *tracer.Tracer, resolver resolve.Resolver, refreshRate time.Duration) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	if refreshRate < MinTUIRefreshRate {
		refreshRate = MinTUIRefreshRate
	}
	if refreshRate > MaxTUIRefreshRate {
		refreshRate = MaxTUIRefreshRate
	}

	return &Model{
		target:      target,
		tr:          tr,
		resolver:    resolver,
		refreshRate: refreshRate,
		state:       StateRunning,
		spinner:     s,
		styles:      DefaultStyles(),
		width:       80,
		height:      24,
		startTime:   time.Now(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runTrace(),
		m.tickCmd(),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Close()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		m.elapsed = time.Since(m.startTime)
		if m.state == StateRunning {
			m.snap = m.tr.Snapshot()
			return m, m.tickCmd()
		}

	case CompleteMsg:
		m.state = StateComplete
		m.snap = m.tr.Snapshot()

	case ErrorMsg:
		m.state = StateError
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	// Hop table
	b.WriteString(m.renderHops())

	// Footer
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the header section.
func (m *Model) renderHeader() string {
	title := m.styles.Title.Render("Trippy")

	var status string
	switch m.state {
	case StateRunning:
		status = m.spinner.View() + " Tracing..."
	case StateComplete:
		status = m.styles.Success.Render("✓ Complete")
	case StateError:
		status = m.styles.Error.Render("✗ Error")
	}

	info := fmt.Sprintf("Target: %s | Round: %d", m.target, m.snap.RoundCount)

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.styles.Subtle.Render(info),
		status,
	)
}

// renderHops renders the hop table.
func (m *Model) renderHops() string {
	if len(m.snap.Hops) == 0 {
		return m.styles.Subtle.Render("Waiting for responses...")
	}

	var rows []string

	// Header row
	header := fmt.Sprintf("%-4s %-15s %-25s %-10s %-10s %-10s",
		"Hop", "IP", "Hostname", "Avg", "Min", "Max")
	rows = append(rows, m.styles.Header.Render(header))

	// Separator
	rows = append(rows, m.styles.Subtle.Render(strings.Repeat("─", 80)))

	// Hop rows
	for _, hop := range m.snap.Hops {
		rows = append(rows, m.renderHopRow(hop))
	}

	return strings.Join(rows, "\n")
}

// renderHopRow renders a single hop row.
func (m *Model) renderHopRow(hop state.Hop) string {
	hopNum := fmt.Sprintf("%-4d", hop.TTL)

	var ip, hostname, avg, min, max string

	if hop.TotalRecv == 0 {
		ip = "*"
		hostname = ""
		avg = "*"
		min = "*"
		max = "*"
	} else {
		if len(hop.Addrs) > 0 {
			ip = hop.Addrs[0].IP.String()
			if m.resolver != nil {
				hostname = truncate(m.resolver.Lookup(context.Background(), hop.Addrs[0].IP), 25)
			}
		} else {
			ip = "*"
		}

		if hop.Mean > 0 {
			avg = fmt.Sprintf("%.2f ms", toMs(hop.Mean))
			min = fmt.Sprintf("%.2f", toMs(hop.Best))
			max = fmt.Sprintf("%.2f", toMs(hop.Worst))
		} else {
			avg = "-"
			min = "-"
			max = "-"
		}
	}

	// Color RTT based on latency
	avgStyled := m.colorizeRTT(avg, toMs(hop.Mean))

	return fmt.Sprintf("%-4s %-15s %-25s %-10s %-10s %-10s",
		m.styles.HopNum.Render(hopNum),
		m.styles.IP.Render(truncate(ip, 15)),
		m.styles.Hostname.Render(hostname),
		avgStyled,
		m.styles.Subtle.Render(min),
		m.styles.Subtle.Render(max),
	)
}

// colorizeRTT applies color based on latency.
func (m *Model) colorizeRTT(s string, rtt float64) string {
	if rtt <= 0 {
		return m.styles.Subtle.Render(s)
	}

	switch {
	case rtt < 50:
		return m.styles.RTTLow.Render(s)
	case rtt < 150:
		return m.styles.RTTMed.Render(s)
	default:
		return m.styles.RTTHigh.Render(s)
	}
}

// renderFooter renders the footer section.
func (m *Model) renderFooter() string {
	var parts []string

	if m.state == StateComplete {
		parts = append(parts, fmt.Sprintf("Hops: %d", len(m.snap.Hops)))
		if n := len(m.snap.Hops); n > 0 && m.snap.Hops[n-1].Mean > 0 {
			parts = append(parts, fmt.Sprintf("Total: %.2f ms", toMs(m.snap.Hops[n-1].Mean)))
		}
	}

	parts = append(parts, "Press 'q' to quit")

	return m.styles.Subtle.Render(strings.Join(parts, " | "))
}

// runTrace starts the tracer's round loop in the background and returns
// a command that blocks until it exits.
func (m *Model) runTrace() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	return func() tea.Msg {
		if err := m.tr.Run(ctx); err != nil {
			return ErrorMsg{Err: err}
		}
		return CompleteMsg{}
	}
}

// tickCmd returns a command that sends tick messages.
func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Close requests that the tracer's round loop stop.
func (m *Model) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.tr.Shutdown()
	return nil
}

// toMs converts a duration to fractional milliseconds.
func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// truncate truncates a string to maxLen.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
