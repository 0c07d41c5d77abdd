package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"

	"github.com/lawontip/lawontip/internal/app"
	"github.com/lawontip/lawontip/internal/config"
	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/tui"
)

// runChat initializes and starts the interactive chat with Bubble Tea TUI.
func runChat(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The chat surface owns a single throwaway conversation.
	a, err := app.Setup(ctx, cfg, logger, app.Options{MemoryOnly: true})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	conversation, err := a.Sessions.Create(ctx)
	if err != nil {
		return fmt.Errorf("opening conversation: %w", err)
	}

	model, err := tui.New(ctx, a.Engine, a.Sessions, conversation.ID)
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
