package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/memory"
	"github.com/lawontip/lawontip/internal/prompt"
	"github.com/lawontip/lawontip/internal/retrieval"
)

// stubSearcher implements retrieval.Searcher for testing.
type stubSearcher struct {
	results   []retrieval.Result
	err       error
	lastQuery string
	lastTopK  int
}

func (s *stubSearcher) Search(_ context.Context, query string, topK int) ([]retrieval.Result, error) {
	s.lastQuery = query
	s.lastTopK = topK
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// stubGenerator implements Generator. errs are returned in order; once
// exhausted, answer is returned. Records every bound prompt it receives.
type stubGenerator struct {
	mu      sync.Mutex
	answer  string
	errs    []error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, boundPrompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, boundPrompt)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		return "", err
	}
	return g.answer, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func legalSources() []retrieval.Result {
	return []retrieval.Result{
		{Document: retrieval.Document{ID: "a", Content: "Section 378 defines theft."}, Similarity: 0.9},
		{Document: retrieval.Document{ID: "b", Content: "Section 379 punishes theft."}, Similarity: 0.8},
	}
}

// fastRetry keeps retry tests quick.
var fastRetry = RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = fastRetry
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing searcher",
			cfg:     Config{Generator: &stubGenerator{}},
			wantErr: "searcher is required",
		},
		{
			name:    "missing generator",
			cfg:     Config{Searcher: &stubSearcher{}},
			wantErr: "generator is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %q, want contains %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RetryDefaultsApplyPerField(t *testing.T) {
	tests := []struct {
		name  string
		retry RetryConfig
		want  RetryConfig
	}{
		{"zero value gets full defaults", RetryConfig{}, DefaultRetryConfig()},
		{
			// App wiring sets MaxRetries from config and nothing else;
			// the backoff intervals must still be filled in.
			"max retries alone keeps backoff intervals",
			RetryConfig{MaxRetries: 5},
			RetryConfig{MaxRetries: 5, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second},
		},
		{"fully specified config untouched", fastRetry, fastRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(Config{
				Searcher:  &stubSearcher{},
				Generator: &stubGenerator{},
				Logger:    log.NewNop(),
				Retry:     tt.retry,
			})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if e.retry != tt.want {
				t.Errorf("derived retry = %+v, want %+v", e.retry, tt.want)
			}
			if e.retry.InitialInterval <= 0 || e.retry.MaxInterval <= 0 {
				t.Errorf("derived retry has no backoff: %+v", e.retry)
			}
		})
	}
}

func TestProcessTurn_Success(t *testing.T) {
	searcher := &stubSearcher{results: legalSources()}
	gen := &stubGenerator{answer: "Theft is defined in Section 378."}
	e := newTestEngine(t, Config{Searcher: searcher, Generator: gen})
	window := memory.NewWindow(2)

	result, err := e.ProcessTurn(context.Background(), "what is theft?", prompt.ModeQuestion, window)
	if err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}

	if result.Answer != "Theft is defined in Section 378." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(result.Sources) != 2 {
		t.Errorf("Sources = %d, want 2", len(result.Sources))
	}
	if searcher.lastQuery != "what is theft?" {
		t.Errorf("searcher got query %q", searcher.lastQuery)
	}
	if searcher.lastTopK != retrieval.DefaultTopK {
		t.Errorf("searcher got topK %d, want default %d", searcher.lastTopK, retrieval.DefaultTopK)
	}

	bound := gen.lastPrompt()
	for _, want := range []string{"Section 378 defines theft.", "what is theft?"} {
		if !strings.Contains(bound, want) {
			t.Errorf("bound prompt missing %q", want)
		}
	}

	history := window.History()
	if len(history) != 2 {
		t.Fatalf("window has %d turns after success, want 2", len(history))
	}
	if history[0].Text != "what is theft?" || history[1].Text != "Theft is defined in Section 378." {
		t.Errorf("window contents = %+v", history)
	}
}

func TestProcessTurn_HistoryExcludesCurrentTurn(t *testing.T) {
	gen := &stubGenerator{answer: "answer two"}
	e := newTestEngine(t, Config{Searcher: &stubSearcher{}, Generator: gen})
	window := memory.NewWindow(2)
	window.Append("first question", "first answer")

	if _, err := e.ProcessTurn(context.Background(), "second question", prompt.ModeQuestion, window); err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}

	bound := gen.lastPrompt()
	if !strings.Contains(bound, "User: first question") {
		t.Error("bound prompt missing prior history")
	}
	// The current utterance belongs in the question slot only.
	if strings.Contains(bound, "User: second question") {
		t.Error("current utterance leaked into chat history")
	}
}

func TestProcessTurn_RetrievalFailure(t *testing.T) {
	searcher := &stubSearcher{err: fmt.Errorf("%w: index unreachable", retrieval.ErrUnavailable)}
	gen := &stubGenerator{answer: "never"}
	e := newTestEngine(t, Config{Searcher: searcher, Generator: gen})
	window := memory.NewWindow(2)
	window.Append("earlier question", "earlier answer")

	result, err := e.ProcessTurn(context.Background(), "what is bail?", prompt.ModeQuestion, window)
	if !errors.Is(err, ErrRetrievalUnavailable) {
		t.Fatalf("ProcessTurn() error = %v, want ErrRetrievalUnavailable", err)
	}
	if result.Answer != FallbackAnswer {
		t.Errorf("Answer = %q, want fallback", result.Answer)
	}
	if gen.callCount() != 0 {
		t.Errorf("generator called %d times on retrieval failure, want 0", gen.callCount())
	}
	if got := len(window.History()); got != 2 {
		t.Errorf("window has %d turns after failed turn, want 2 (unchanged)", got)
	}
}

func TestProcessTurn_GenerationFailureNotRetried(t *testing.T) {
	gen := &stubGenerator{errs: []error{
		fmt.Errorf("%w: 401 unauthorized", ErrGenerationUnavailable),
	}}
	e := newTestEngine(t, Config{Searcher: &stubSearcher{}, Generator: gen})
	window := memory.NewWindow(2)

	result, err := e.ProcessTurn(context.Background(), "what is theft?", prompt.ModeQuestion, window)
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("ProcessTurn() error = %v, want ErrGenerationUnavailable", err)
	}
	if result.Answer != FallbackAnswer {
		t.Errorf("Answer = %q, want fallback", result.Answer)
	}
	if gen.callCount() != 1 {
		t.Errorf("generator called %d times, want 1 (no retry for transport failures)", gen.callCount())
	}
	if window.Len() != 0 {
		t.Errorf("window mutated on failed turn")
	}
}

func TestProcessTurn_TimeoutRetriedThenSucceeds(t *testing.T) {
	timeout := fmt.Errorf("%w: deadline exceeded", ErrGenerationTimeout)
	gen := &stubGenerator{answer: "recovered answer", errs: []error{timeout, timeout}}
	e := newTestEngine(t, Config{Searcher: &stubSearcher{}, Generator: gen})
	window := memory.NewWindow(2)

	result, err := e.ProcessTurn(context.Background(), "what is theft?", prompt.ModeQuestion, window)
	if err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}
	if result.Answer != "recovered answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if gen.callCount() != 3 {
		t.Errorf("generator called %d times, want 3", gen.callCount())
	}
	if window.Len() != 2 {
		t.Errorf("window not updated after recovered turn")
	}
}

func TestProcessTurn_TimeoutExhaustsRetries(t *testing.T) {
	timeout := fmt.Errorf("%w: deadline exceeded", ErrGenerationTimeout)
	gen := &stubGenerator{errs: []error{timeout, timeout, timeout, timeout}}
	e := newTestEngine(t, Config{Searcher: &stubSearcher{}, Generator: gen})
	window := memory.NewWindow(2)

	result, err := e.ProcessTurn(context.Background(), "what is theft?", prompt.ModeQuestion, window)
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("ProcessTurn() error = %v, want ErrGenerationTimeout", err)
	}
	if result.Answer != FallbackAnswer {
		t.Errorf("Answer = %q, want fallback", result.Answer)
	}
	if gen.callCount() != fastRetry.MaxRetries+1 {
		t.Errorf("generator called %d times, want %d", gen.callCount(), fastRetry.MaxRetries+1)
	}
	if window.Len() != 0 {
		t.Errorf("window mutated on failed turn")
	}
}

func TestProcessTurn_ScenarioModeBindsScenarioTemplate(t *testing.T) {
	gen := &stubGenerator{answer: "Section 100 applies."}
	e := newTestEngine(t, Config{Searcher: &stubSearcher{}, Generator: gen})
	window := memory.NewWindow(2)

	if _, err := e.ProcessTurn(context.Background(), "someone attacked me and I pushed them", prompt.ModeScenario, window); err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}
	if !strings.Contains(gen.lastPrompt(), "SCENARIO:") {
		t.Error("scenario turn bound the question template")
	}

	if _, err := e.ProcessTurn(context.Background(), "what is theft?", prompt.ModeQuestion, window); err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}
	if strings.Contains(gen.lastPrompt(), "SCENARIO:") {
		t.Error("question turn bound the scenario template")
	}
}

func TestProcessTurn_CircuitOpenSkipsGenerator(t *testing.T) {
	gen := &stubGenerator{errs: []error{
		fmt.Errorf("%w: 500", ErrGenerationUnavailable),
	}}
	e := newTestEngine(t, Config{
		Searcher:       &stubSearcher{},
		Generator:      gen,
		CircuitBreaker: CircuitBreakerConfig{FailureThreshold: 1},
	})
	window := memory.NewWindow(2)
	ctx := context.Background()

	if _, err := e.ProcessTurn(ctx, "first", prompt.ModeQuestion, window); !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("first turn error = %v, want ErrGenerationUnavailable", err)
	}
	calls := gen.callCount()

	_, err := e.ProcessTurn(ctx, "second", prompt.ModeQuestion, window)
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("second turn error = %v, want ErrGenerationUnavailable", err)
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second turn error = %v, want ErrCircuitOpen in chain", err)
	}
	if gen.callCount() != calls {
		t.Errorf("generator called while circuit open")
	}
}

func TestResetConversation(t *testing.T) {
	e := newTestEngine(t, Config{Searcher: &stubSearcher{}, Generator: &stubGenerator{answer: "a"}})
	window := memory.NewWindow(2)
	window.Append("question one", "answer one")
	window.Append("question two", "answer two")

	e.ResetConversation(window)

	if window.Len() != 0 {
		t.Errorf("window has %d turns after reset, want 0", window.Len())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "none"},
		{"retrieval", fmt.Errorf("turn: %w", ErrRetrievalUnavailable), "retrieval_unavailable"},
		{"binding", ErrTemplateBinding, "template_binding"},
		{"timeout", fmt.Errorf("%w: slow", ErrGenerationTimeout), "generation_timeout"},
		{"unavailable", ErrGenerationUnavailable, "generation_unavailable"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
