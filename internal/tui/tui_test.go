package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/lawontip/lawontip/internal/engine"
	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/memory"
	"github.com/lawontip/lawontip/internal/prompt"
	"github.com/lawontip/lawontip/internal/retrieval"
	"github.com/lawontip/lawontip/internal/session"
)

// goleakOptions returns standard goleak options for all TUI tests.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
	}
}

// stubEngine is a TurnProcessor with a canned outcome.
type stubEngine struct {
	answer  string
	sources []retrieval.Result
	err     error
}

func (s *stubEngine) ProcessTurn(ctx context.Context, utterance string, _ prompt.Mode, window *memory.Window) (*engine.Result, error) {
	if ctx.Err() != nil {
		return &engine.Result{Answer: engine.FallbackAnswer}, ctx.Err()
	}
	if s.err != nil {
		return &engine.Result{Answer: engine.FallbackAnswer}, s.err
	}
	window.Append(utterance, s.answer)
	return &engine.Result{Answer: s.answer, Sources: s.sources}, nil
}

// newTestModel creates a Model bound to a fresh memory-only conversation.
func newTestModel(t *testing.T, eng TurnProcessor) (*Model, *session.Registry, session.Conversation) {
	t.Helper()

	registry := session.NewRegistry(2, nil, log.NewNop())
	conversation, err := registry.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	m, err := New(context.Background(), eng, registry, conversation.ID)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if m.ctxCancel != nil {
			m.ctxCancel()
		}
	})
	return m, registry, conversation
}

func TestNew_Validation(t *testing.T) {
	registry := session.NewRegistry(2, nil, log.NewNop())

	if _, err := New(context.Background(), nil, registry, uuid.Nil); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := New(context.Background(), &stubEngine{}, nil, uuid.Nil); err == nil {
		t.Error("expected error for nil registry")
	}
	//lint:ignore SA1012 intentionally testing nil context handling
	if _, err := New(nil, &stubEngine{}, registry, uuid.Nil); err == nil { //nolint:staticcheck
		t.Error("expected error for nil context")
	}
}

func TestModel_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m, _, _ := newTestModel(t, &stubEngine{answer: "x"})
	if cmd := m.Init(); cmd == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
}

func TestModel_HandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("help adds message", func(t *testing.T) {
		m, _, _ := newTestModel(t, &stubEngine{answer: "x"})
		model, _ := m.handleSlashCommand(cmdHelp)
		result := model.(*Model)
		if len(result.messages) != 1 {
			t.Errorf("expected 1 message, got %d", len(result.messages))
		}
	})

	t.Run("clear resets window and display", func(t *testing.T) {
		m, registry, conversation := newTestModel(t, &stubEngine{answer: "x"})

		window, release, err := registry.AcquireTurn(conversation.ID)
		if err != nil {
			t.Fatalf("AcquireTurn() error = %v", err)
		}
		window.Append("q", "a")
		release()
		m.messages = []Message{{Role: roleUser, Text: "q"}}

		model, _ := m.handleSlashCommand(cmdClear)
		result := model.(*Model)

		// Display keeps only the confirmation message.
		if len(result.messages) != 1 || result.messages[0].Role != roleSystem {
			t.Errorf("expected single system message, got %v", result.messages)
		}

		window, release, err = registry.AcquireTurn(conversation.ID)
		if err != nil {
			t.Fatalf("AcquireTurn() error = %v", err)
		}
		defer release()
		if window.Len() != 0 {
			t.Error("/clear should clear the history window")
		}
	})

	t.Run("mode commands switch modes", func(t *testing.T) {
		m, _, _ := newTestModel(t, &stubEngine{answer: "x"})

		m.handleSlashCommand(cmdScenario)
		if m.Mode() != prompt.ModeScenario {
			t.Errorf("Mode() = %v, want scenario", m.Mode())
		}
		m.handleSlashCommand(cmdQuestion)
		if m.Mode() != prompt.ModeQuestion {
			t.Errorf("Mode() = %v, want question", m.Mode())
		}
		m.handleSlashCommand(cmdMode)
		if m.Mode() != prompt.ModeScenario {
			t.Errorf("/mode should toggle, got %v", m.Mode())
		}
	})

	t.Run("exit returns quit command", func(t *testing.T) {
		m, _, _ := newTestModel(t, &stubEngine{answer: "x"})
		_, cmd := m.handleSlashCommand(cmdExit)
		if cmd == nil {
			t.Error("expected quit command for exit")
		}
	})

	t.Run("unknown command reports error", func(t *testing.T) {
		m, _, _ := newTestModel(t, &stubEngine{answer: "x"})
		model, _ := m.handleSlashCommand("/bogus")
		result := model.(*Model)
		if len(result.messages) != 1 || result.messages[0].Role != roleError {
			t.Errorf("expected error message, got %v", result.messages)
		}
	})
}

func TestModel_HistoryNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m, _, _ := newTestModel(t, &stubEngine{answer: "x"})
	m.history = []string{"first", "second", "third"}
	m.historyIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"}, // Stays at first
		{1, "second"},
		{1, "third"},
		{1, ""}, // Past end = empty
	}

	for _, tt := range tests {
		m.navigateHistory(tt.delta)
		if got := m.input.Value(); got != tt.expected {
			t.Errorf("navigateHistory(%d): input = %q, want %q", tt.delta, got, tt.expected)
		}
	}
}

func TestStartTurn_Success(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	eng := &stubEngine{
		answer: "Section 420 covers cheating.",
		sources: []retrieval.Result{
			{Document: retrieval.Document{Content: "doc", Metadata: map[string]string{"source": "ipc.pdf"}}, Similarity: 0.9},
		},
	}
	m, registry, conversation := newTestModel(t, eng)

	cmd := m.startTurn(context.Background(), "What is section 420?", prompt.ModeQuestion)
	msg := cmd()

	done, ok := msg.(turnDoneMsg)
	if !ok {
		t.Fatalf("expected turnDoneMsg, got %T", msg)
	}
	if done.answer != eng.answer {
		t.Errorf("answer = %q, want %q", done.answer, eng.answer)
	}
	if done.errorKind != "" {
		t.Errorf("errorKind = %q, want empty", done.errorKind)
	}
	if len(done.sources) != 1 {
		t.Errorf("sources = %d, want 1", len(done.sources))
	}

	// Successful first turn names the conversation.
	got, err := registry.Get(conversation.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "What is section 420?" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestStartTurn_Degraded(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	eng := &stubEngine{err: engine.ErrGenerationUnavailable}
	m, registry, conversation := newTestModel(t, eng)

	cmd := m.startTurn(context.Background(), "hello", prompt.ModeQuestion)
	msg := cmd()

	done, ok := msg.(turnDoneMsg)
	if !ok {
		t.Fatalf("expected turnDoneMsg, got %T", msg)
	}
	if done.answer != engine.FallbackAnswer {
		t.Errorf("answer = %q, want fallback", done.answer)
	}
	if done.errorKind != "generation_unavailable" {
		t.Errorf("errorKind = %q", done.errorKind)
	}

	// A degraded turn must not name the conversation.
	got, err := registry.Get(conversation.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "" {
		t.Errorf("title = %q, want empty", got.Title)
	}
}

func TestStartTurn_GateHeld(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m, registry, conversation := newTestModel(t, &stubEngine{answer: "x"})

	_, release, err := registry.AcquireTurn(conversation.ID)
	if err != nil {
		t.Fatalf("AcquireTurn() error = %v", err)
	}
	defer release()

	cmd := m.startTurn(context.Background(), "hello", prompt.ModeQuestion)
	msg := cmd()

	errMsg, ok := msg.(turnErrorMsg)
	if !ok {
		t.Fatalf("expected turnErrorMsg, got %T", msg)
	}
	if !errors.Is(errMsg.err, session.ErrTurnInFlight) {
		t.Errorf("err = %v, want ErrTurnInFlight", errMsg.err)
	}
}

func TestStartTurn_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m, _, _ := newTestModel(t, &stubEngine{answer: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := m.startTurn(ctx, "hello", prompt.ModeQuestion)
	msg := cmd()

	errMsg, ok := msg.(turnErrorMsg)
	if !ok {
		t.Fatalf("expected turnErrorMsg, got %T", msg)
	}
	if !errors.Is(errMsg.err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", errMsg.err)
	}
}

func TestUpdate_TurnDone(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m, _, _ := newTestModel(t, &stubEngine{answer: "x"})
	m.state = StateThinking

	model, _ := m.Update(turnDoneMsg{
		answer: "answer text",
		sources: []retrieval.Result{
			{Document: retrieval.Document{Metadata: map[string]string{"source": "crpc.pdf"}}, Similarity: 0.8},
		},
	})
	result := model.(*Model)

	if result.state != StateInput {
		t.Errorf("state = %v, want StateInput", result.state)
	}
	// Answer plus a sources summary.
	if len(result.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(result.messages))
	}
	if result.messages[0].Role != roleAssistant || result.messages[0].Text != "answer text" {
		t.Errorf("unexpected assistant message: %+v", result.messages[0])
	}
	if result.messages[1].Role != roleSystem {
		t.Errorf("unexpected sources message: %+v", result.messages[1])
	}
}

func TestUpdate_TurnError_Canceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m, _, _ := newTestModel(t, &stubEngine{answer: "x"})
	m.state = StateThinking

	model, _ := m.Update(turnErrorMsg{err: context.Canceled})
	result := model.(*Model)

	if result.state != StateInput {
		t.Errorf("state = %v, want StateInput", result.state)
	}
	if len(result.messages) != 1 || result.messages[0].Text != "(Canceled)" {
		t.Errorf("unexpected messages: %v", result.messages)
	}
}

func TestRenderSources(t *testing.T) {
	got := renderSources([]retrieval.Result{
		{Document: retrieval.Document{Metadata: map[string]string{"source": "ipc.pdf"}}, Similarity: 0.92},
		{Document: retrieval.Document{}, Similarity: 0.5},
	})

	if want := "1. ipc.pdf (0.92)"; !strings.Contains(got, want) {
		t.Errorf("renderSources() = %q, missing %q", got, want)
	}
	if want := "2. corpus (0.50)"; !strings.Contains(got, want) {
		t.Errorf("renderSources() = %q, missing %q", got, want)
	}
}
