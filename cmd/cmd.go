// Package cmd provides CLI commands for LAWONTIP.
//
// Commands:
//   - chat: Interactive terminal chat with Bubble Tea TUI
//   - ask: One-shot question from the command line
//   - serve: HTTP API server
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lawontip/lawontip/internal/log"
)

// Execute is the main entry point for the LAWONTIP CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "chat":
		return runChat(logger)
	case "ask":
		return runAsk(logger)
	case "serve":
		return runServe(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("LAWONTIP - Law on your fingertip")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lawontip chat                 Start interactive chat mode")
	fmt.Println("  lawontip ask [-scenario] <q>  Ask one question and exit")
	fmt.Println("  lawontip serve [addr]         Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  lawontip --version            Show version information")
	fmt.Println("  lawontip --help               Show this help")
	fmt.Println()
	fmt.Println("Chat commands (in interactive mode):")
	fmt.Println("  /help              Show available commands")
	fmt.Println("  /clear             Clear conversation history")
	fmt.Println("  /mode              Toggle question/scenario mode")
	fmt.Println("  /exit, /quit       Exit")
	fmt.Println()
	fmt.Println("Shortcuts:")
	fmt.Println("  Tab                Toggle question/scenario mode")
	fmt.Println("  Ctrl+D             Exit")
	fmt.Println("  Ctrl+C             Cancel current input")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key (default provider)")
	fmt.Println("  DATABASE_URL       Optional: PostgreSQL connection override")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
}
