package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lawontip/lawontip/internal/log"
	"github.com/lawontip/lawontip/internal/session"
)

// ConversationHandler handles conversation management endpoints.
type ConversationHandler struct {
	sessions *session.Registry
	logger   log.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(sessions *session.Registry, logger log.Logger) *ConversationHandler {
	return &ConversationHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.list)
	mux.HandleFunc("POST /api/conversations", h.create)
	mux.HandleFunc("GET /api/conversations/{id}", h.get)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.delete)
	mux.HandleFunc("POST /api/conversations/{id}/reset", h.reset)
}

// ConversationResponse is the JSON view of a conversation.
type ConversationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toConversationResponse(c session.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        c.ID.String(),
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// list returns open conversations, most recently active first.
func (h *ConversationHandler) list(w http.ResponseWriter, _ *http.Request) {
	conversations := h.sessions.List()
	out := make([]ConversationResponse, len(conversations))
	for i, c := range conversations {
		out[i] = toConversationResponse(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": out,
		"total":         len(out),
	})
}

// create opens a new conversation. The title stays empty until the
// first turn names it.
func (h *ConversationHandler) create(w http.ResponseWriter, r *http.Request) {
	conversation, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, toConversationResponse(conversation))
}

// get returns a conversation's metadata.
func (h *ConversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	conversation, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conversation))
}

// delete closes a conversation and discards its history.
func (h *ConversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		h.logger.Error("failed to delete conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reset clears a conversation's history window, keeping its identity.
func (h *ConversationHandler) reset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Reset(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path segment, writing a 400 on failure.
func (h *ConversationHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
