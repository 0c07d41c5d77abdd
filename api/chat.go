package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/lawontip/lawontip/internal/engine"
	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/memory"
	"github.com/lawontip/lawontip/internal/prompt"
	"github.com/lawontip/lawontip/internal/session"
)

// MaxQueryLength bounds the utterance accepted per turn.
const MaxQueryLength = 10000

// maxChatBodyBytes limits the request body size for the chat endpoint.
const maxChatBodyBytes = 1024 * 1024

// TurnProcessor runs one conversational turn against the retrieval
// corpus and the model.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, utterance string, mode prompt.Mode, window *memory.Window) (*engine.Result, error)
}

// ChatHandler handles the turn endpoint.
type ChatHandler struct {
	engine   TurnProcessor
	sessions *session.Registry
	logger   log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(eng TurnProcessor, sessions *session.Registry, logger log.Logger) *ChatHandler {
	return &ChatHandler{engine: eng, sessions: sessions, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.send)
}

// ChatRequest is the request body for one turn.
type ChatRequest struct {
	ConversationID string `json:"conversationId"`
	Query          string `json:"query"`
	Mode           string `json:"mode"` // "question" (default) or "scenario"
}

// SourceResponse is one retrieved document backing the answer.
type SourceResponse struct {
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float32           `json:"similarity"`
}

// ChatResponse is the outcome of one turn. Answer is always present;
// when the turn degraded it carries the fallback text and ErrorKind
// names what failed.
type ChatResponse struct {
	ConversationID string           `json:"conversationId"`
	Answer         string           `json:"answer"`
	Sources        []SourceResponse `json:"sources,omitempty"`
	ErrorKind      string           `json:"errorKind,omitempty"`
}

// parseConversationID parses a required conversation id.
func parseConversationID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, errors.New("conversation id is required")
	}
	return uuid.Parse(s)
}

// send runs one turn. Collaborator failures degrade to a 200 with the
// fallback answer so clients always have text to show; only request
// errors and busy conversations map to non-2xx statuses.
func (h *ChatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}
	if len(req.Query) > MaxQueryLength {
		writeError(w, http.StatusBadRequest, "query_too_long", "query exceeds maximum length")
		return
	}

	id, err := parseConversationID(req.ConversationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversationId must be a UUID")
		return
	}

	mode, err := prompt.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_mode", "mode must be \"question\" or \"scenario\"")
		return
	}

	window, release, err := h.sessions.AcquireTurn(id)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		case errors.Is(err, session.ErrTurnInFlight):
			writeError(w, http.StatusConflict, "turn_in_flight", "a turn is already running for this conversation")
		default:
			h.logger.Error("failed to acquire turn", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}
	defer release()

	result, err := h.engine.ProcessTurn(r.Context(), req.Query, mode, window)
	if err != nil {
		writeJSON(w, http.StatusOK, ChatResponse{
			ConversationID: id.String(),
			Answer:         result.Answer,
			ErrorKind:      engine.Kind(err),
		})
		return
	}

	h.sessions.RecordTurn(r.Context(), id, req.Query)

	sources := make([]SourceResponse, len(result.Sources))
	for i, src := range result.Sources {
		sources[i] = SourceResponse{
			Content:    src.Document.Content,
			Metadata:   src.Document.Metadata,
			Similarity: src.Similarity,
		}
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: id.String(),
		Answer:         result.Answer,
		Sources:        sources,
	})
}
