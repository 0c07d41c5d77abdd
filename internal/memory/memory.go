// Package memory provides the bounded conversation window that feeds
// chat history into each turn.
//
// A Window holds the k most recent completed exchanges (one user turn plus
// its assistant answer). Appending beyond capacity evicts the oldest
// exchange. A user turn is never stored without its paired answer, so a
// failed turn leaves the window exactly as it was.
//
// Each Window is owned by exactly one conversation. The mutex guards
// against accidental cross-goroutine access; callers are still expected to
// serialize turns on a conversation (see internal/session).
package memory

import "sync"

// Role identifies the author of a turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single utterance by the user or the assistant.
// Turns are immutable once stored.
type Turn struct {
	Role Role
	Text string
}

// Exchange pairs a user turn with its assistant answer.
type Exchange struct {
	User      Turn
	Assistant Turn
}

// DefaultExchanges is the default window capacity in exchanges.
const DefaultExchanges = 2

// Window is a fixed-capacity FIFO of completed exchanges.
//
// The zero value is not useful - use NewWindow.
type Window struct {
	mu        sync.Mutex
	capacity  int
	exchanges []Exchange
}

// NewWindow creates a Window holding at most k exchanges.
// Non-positive k falls back to DefaultExchanges.
func NewWindow(k int) *Window {
	if k <= 0 {
		k = DefaultExchanges
	}
	return &Window{
		capacity:  k,
		exchanges: make([]Exchange, 0, k),
	}
}

// Capacity returns the maximum number of exchanges the window holds.
func (w *Window) Capacity() int {
	return w.capacity
}

// Append records one completed exchange. If the window is full, the oldest
// exchange is evicted. Exactly one exchange is added per call, so at most
// one eviction occurs.
func (w *Window) Append(utterance, answer string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.exchanges = append(w.exchanges, Exchange{
		User:      Turn{Role: RoleUser, Text: utterance},
		Assistant: Turn{Role: RoleAssistant, Text: answer},
	})
	if len(w.exchanges) > w.capacity {
		// Shift in place so the backing array stays at capacity.
		copy(w.exchanges, w.exchanges[1:])
		w.exchanges = w.exchanges[:w.capacity]
	}
}

// History returns all turns in the window, oldest first.
// The result never exceeds 2*k turns and is a copy safe for the caller to hold.
func (w *Window) History() []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	turns := make([]Turn, 0, len(w.exchanges)*2)
	for _, ex := range w.exchanges {
		turns = append(turns, ex.User, ex.Assistant)
	}
	return turns
}

// Exchanges returns a copy of the stored exchanges, oldest first.
func (w *Window) Exchanges() []Exchange {
	w.mu.Lock()
	defer w.mu.Unlock()

	cp := make([]Exchange, len(w.exchanges))
	copy(cp, w.exchanges)
	return cp
}

// Len returns the number of completed exchanges currently stored.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.exchanges)
}

// Clear resets the window to empty. Always safe; visible to the next turn only.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exchanges = w.exchanges[:0]
}
