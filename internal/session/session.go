// Package session tracks conversations: identity and title metadata in
// PostgreSQL, and the live history window plus the one-turn-in-flight
// gate in process memory.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// ErrTurnInFlight indicates a turn is already running for the
// conversation. Turns within a conversation are strictly serialized;
// the caller should surface a busy condition rather than queue.
var ErrTurnInFlight = errors.New("turn already in flight")

// Conversation is the metadata view of a conversation.
type Conversation struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TitleMaxLength is the maximum length for auto-generated titles.
const TitleMaxLength = 50

// TitleFromUtterance derives a conversation title from the first user
// utterance by truncation.
// Rules:
// - Max 50 characters (runes, not bytes - supports UTF-8)
// - Truncates at word boundary if possible
// - Adds "..." if truncated
func TitleFromUtterance(utterance string) string {
	utterance = strings.TrimSpace(utterance)
	runes := []rune(utterance)
	if len(runes) <= TitleMaxLength {
		return utterance
	}

	truncated := string(runes[:TitleMaxLength])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > TitleMaxLength/2 {
		truncated = truncated[:lastSpace]
	}

	return strings.TrimSpace(truncated) + "..."
}
