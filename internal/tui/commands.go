package tui

import (
	"context"

	tea "charm.land/bubbletea/v2"

	"github.com/lawontip/lawontip/internal/engine"
	"github.com/lawontip/lawontip/internal/prompt"
	"github.com/lawontip/lawontip/internal/retrieval"
)

// Turn message types for Bubble Tea.
type turnDoneMsg struct {
	answer  string
	sources []retrieval.Result
	// errorKind is set when the turn degraded: answer carries the
	// fallback text and sources are empty.
	errorKind string
}

type turnErrorMsg struct {
	err error
}

// startTurn creates a command that runs one turn against the engine.
// ctx carries the per-turn timeout created in handleSubmit so Esc and
// Ctrl+C can cancel mid-generation.
func (m *Model) startTurn(ctx context.Context, query string, mode prompt.Mode) tea.Cmd {
	eng := m.engine
	sessions := m.sessions
	id := m.conversationID

	return func() tea.Msg {
		window, release, err := sessions.AcquireTurn(id)
		if err != nil {
			return turnErrorMsg{err: err}
		}
		defer release()

		result, err := eng.ProcessTurn(ctx, query, mode, window)
		if err != nil {
			if ctx.Err() != nil {
				return turnErrorMsg{err: ctx.Err()}
			}
			return turnDoneMsg{answer: result.Answer, errorKind: engine.Kind(err)}
		}

		sessions.RecordTurn(ctx, id, query)
		return turnDoneMsg{answer: result.Answer, sources: result.Sources}
	}
}
