package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dtrace/trippy/internal/resolve"
	"github.com/dtrace/trippy/internal/tracer"
)

// Run starts the TUI against an already-constructed Tracer, driving its
// round loop until the user quits or it exits on its own.
func Run(target string, tr *tracer.Tracer, resolver resolve.Resolver, refreshRate time.Duration) error {
	model := New(target, tr, resolver, refreshRate)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Check if there was an error during the trace
	if m, ok := finalModel.(*Model); ok {
		if m.state == StateError && m.err != nil {
			return m.err
		}
	}

	return nil
}
