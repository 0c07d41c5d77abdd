package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lawontip/lawontip/internal/app"
	"github.com/lawontip/lawontip/internal/config"
	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/memory"
	"github.com/lawontip/lawontip/internal/prompt"
)

// runAsk answers a single question with a fresh, empty history window
// and exits.
func runAsk(logger log.Logger) error {
	askFlags := flag.NewFlagSet("ask", flag.ContinueOnError)
	askFlags.SetOutput(os.Stderr)
	scenario := askFlags.Bool("scenario", false, "treat the input as a situation description")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := askFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ask flags: %w", err)
	}

	question := strings.TrimSpace(strings.Join(askFlags.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: lawontip ask [-scenario] <question>")
	}

	mode := prompt.ModeQuestion
	if *scenario {
		mode = prompt.ModeScenario
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger, app.Options{MemoryOnly: true})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	window := memory.NewWindow(cfg.HistoryWindow)
	result, err := a.Engine.ProcessTurn(ctx, question, mode, window)

	// The answer is always printable: on failure it carries the
	// fallback text.
	fmt.Println(result.Answer)
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, src := range result.Sources {
			name := src.Document.Metadata["source"]
			if name == "" {
				name = "corpus"
			}
			fmt.Printf("  %d. %s (%.2f)\n", i+1, name, src.Similarity)
		}
	}
	return nil
}
