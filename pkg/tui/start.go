package tui

import (
	"context"

	"tipjar/pkg/controller"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the page until the user quits. The controller must already be
// started.
func Start(ctx context.Context, ctrl *controller.Controller, opts Options) error {
	if opts.Version != "" {
		Version = opts.Version
	}
	p := tea.NewProgram(
		initialModel(ctx, ctrl, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	return err
}
