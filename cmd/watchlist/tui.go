package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/naveenspark/watchlist/internal/tui"
	"github.com/naveenspark/watchlist/internal/watchlist"
)

// TUI launches the interactive watchlist.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 0 {
		return fmt.Errorf("unknown command %q", cmd.Args().First())
	}
	// Logs go to the rotating file while the TUI owns the terminal.
	if err := r.connect(cmd, true); err != nil {
		return err
	}

	model := watchlist.New(r.api, r.logger)
	model.Follow(r.store)
	app := tui.NewApp(r.store, r.api, model, r.logger)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
