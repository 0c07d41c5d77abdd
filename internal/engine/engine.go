// Package engine orchestrates a single conversational turn: read the
// window, retrieve context, bind the mode's template, generate, and
// commit the exchange to memory only when the whole turn succeeded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/lawontip/lawontip/internal/memory"
	"github.com/lawontip/lawontip/internal/prompt"
	"github.com/lawontip/lawontip/internal/retrieval"
)

// Config contains all required parameters for the Engine.
type Config struct {
	Searcher  retrieval.Searcher
	Generator Generator
	Logger    *slog.Logger

	// TopK is the number of documents retrieved per turn
	// (default: retrieval.DefaultTopK).
	TopK int

	// Resilience configuration (zero values use defaults).
	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	RateLimiter    *rate.Limiter // nil disables proactive rate limiting
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Searcher == nil {
		return errors.New("searcher is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	return nil
}

// Result is the outcome of one turn. Answer is always safe to show the
// user: on failure it carries FallbackAnswer and the accompanying error
// identifies the kind.
type Result struct {
	Answer  string
	Sources []retrieval.Result // retrieved documents backing the answer, most relevant first
}

// Engine runs conversational turns. It is stateless across turns except
// for the circuit breaker; all per-conversation state lives in the
// caller's memory.Window.
//
// Safe for concurrent use across conversations. Callers must serialize
// turns within a single conversation.
type Engine struct {
	searcher  retrieval.Searcher
	generator Generator
	logger    *slog.Logger
	topK      int

	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
}

// New creates an Engine with required configuration.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	retry := cfg.Retry.withDefaults()

	return &Engine{
		searcher:  cfg.Searcher,
		generator: cfg.Generator,
		logger:    logger,
		topK:      topK,
		retry:     retry,
		breaker:   NewCircuitBreaker(cfg.CircuitBreaker),
		limiter:   cfg.RateLimiter,
	}, nil
}

// ProcessTurn executes one turn of a conversation.
//
// The window is read before any collaborator is called and mutated only
// after generation succeeded, so a failed turn leaves conversation state
// exactly as before the call. The returned Result always carries a
// user-safe Answer; when err is non-nil the Answer is FallbackAnswer and
// errors.Is identifies the failure kind.
func (e *Engine) ProcessTurn(ctx context.Context, utterance string, mode prompt.Mode, window *memory.Window) (*Result, error) {
	history := prompt.FormatHistory(window.History())

	sources, err := e.searcher.Search(ctx, utterance, e.topK)
	if err != nil {
		return e.failTurn(fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err))
	}

	contents := make([]string, len(sources))
	for i, src := range sources {
		contents[i] = src.Document.Content
	}

	bound, err := prompt.Select(mode).Bind(prompt.FormatContext(contents), history, utterance)
	if err != nil {
		return e.failTurn(fmt.Errorf("%w: %w", ErrTemplateBinding, err))
	}

	if err := e.breaker.Allow(); err != nil {
		return e.failTurn(fmt.Errorf("%w: %w", ErrGenerationUnavailable, err))
	}

	answer, err := e.generateWithRetry(ctx, bound)
	if err != nil {
		e.breaker.Failure()
		return e.failTurn(err)
	}
	e.breaker.Success()

	window.Append(utterance, answer)

	e.logger.Debug("turn completed",
		"mode", mode.String(),
		"sources", len(sources),
		"answer_len", len(answer),
	)

	return &Result{Answer: answer, Sources: sources}, nil
}

// ResetConversation discards all exchanges retained for the
// conversation. The next turn starts with empty history.
func (e *Engine) ResetConversation(window *memory.Window) {
	window.Clear()
}

// failTurn logs the failure and returns the fallback result with the
// classified error. The window is never touched on this path.
func (e *Engine) failTurn(err error) (*Result, error) {
	e.logger.Warn("turn failed", "kind", Kind(err), "error", err)
	return &Result{Answer: FallbackAnswer}, err
}
