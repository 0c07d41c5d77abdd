// Package tui provides the Bubble Tea terminal interface for LAWONTIP.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/google/uuid"

	"github.com/lawontip/lawontip/internal/engine"
	"github.com/lawontip/lawontip/internal/memory"
	"github.com/lawontip/lawontip/internal/prompt"
	"github.com/lawontip/lawontip/internal/session"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput    State = iota // Awaiting user input
	StateThinking              // Turn in progress
)

// Memory bounds to prevent unbounded growth.
const (
	maxMessages = 100 // Maximum messages stored
	maxHistory  = 100 // Maximum command history entries
)

// turnTimeout is the maximum time for a single turn, retries included.
const turnTimeout = 5 * time.Minute

// Message role constants for consistent display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt prefix line
	minViewport    = 3 // Minimum viewport height
)

// Message represents a conversation message for display.
type Message struct {
	Role string // "user", "assistant", "system", "error"
	Text string
}

// TurnProcessor runs one conversational turn.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, utterance string, mode prompt.Mode, window *memory.Window) (*engine.Result, error)
}

// Model is the Bubble Tea model for the LAWONTIP terminal interface.
type Model struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	// State
	state     State
	mode      prompt.Mode
	lastCtrlC time.Time

	// Output
	spinner  spinner.Model
	viewBuf  strings.Builder // Reusable buffer for View() to reduce allocations
	messages []Message

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Turn management
	turnCancel context.CancelFunc

	// Dependencies
	engine         TurnProcessor
	sessions       *session.Registry
	conversationID uuid.UUID
	ctx            context.Context
	ctxCancel      context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	// Styles
	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// addMessage appends a message and enforces the maxMessages bound.
func (m *Model) addMessage(msg Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// New creates a TUI model bound to one conversation.
//
// ctx MUST be the same context passed to tea.WithContext() so
// cancellation behaves consistently.
func New(ctx context.Context, eng TurnProcessor, sessions *session.Registry, conversationID uuid.UUID) (*Model, error) {
	if eng == nil {
		return nil, errors.New("tui.New: engine is required")
	}
	if sessions == nil {
		return nil, errors.New("tui.New: session registry is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	// Enter submits, Shift+Enter adds newline (default behavior)
	ta := textarea.New()
	ta.Placeholder = "Ask about Indian law..."
	ta.SetHeight(1)
	ta.SetWidth(120) // Updated on WindowSizeMsg
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{
		Focused: cleanStyle,
		Blurred: cleanStyle,
	})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Viewport keys are routed explicitly in handleKey to avoid
	// conflicts with textarea and history navigation.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	h := help.New()

	return &Model{
		engine:         eng,
		sessions:       sessions,
		conversationID: conversationID,
		ctx:            ctx,
		ctxCancel:      cancel,
		mode:           prompt.ModeQuestion,
		input:          ta,
		spinner:        sp,
		viewport:       vp,
		help:           h,
		keys:           newKeyMap(),
		styles:         DefaultStyles(),
		history:        make([]string, 0, maxHistory),
		markdown:       newMarkdownRenderer(80),
		width:          80, // Default width until WindowSizeMsg arrives
	}, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(),
	)
}

// Mode returns the active prompting mode.
func (m *Model) Mode() prompt.Mode {
	return m.mode
}
