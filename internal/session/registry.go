package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawontip/lawontip/internal/memory"
)

// Registry owns the live state of every open conversation: its history
// window and the gate that serializes turns. Metadata is mirrored to an
// optional Store; windows never leave process memory.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry

	historyWindow int
	store         *Store // nil = memory-only (CLI surfaces)
	logger        *slog.Logger
}

type entry struct {
	meta   Conversation
	window *memory.Window
	turnMu sync.Mutex
}

// NewRegistry creates a Registry. historyWindow is the number of
// exchanges each conversation retains (non-positive uses the memory
// package default). store may be nil for memory-only operation.
func NewRegistry(historyWindow int, store *Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries:       make(map[uuid.UUID]*entry),
		historyWindow: historyWindow,
		store:         store,
		logger:        logger,
	}
}

// Create opens a new conversation with a fresh window.
func (r *Registry) Create(ctx context.Context) (Conversation, error) {
	id := uuid.New()
	now := time.Now()
	meta := Conversation{ID: id, CreatedAt: now, UpdatedAt: now}

	if r.store != nil {
		persisted, err := r.store.Create(ctx, id, "")
		if err != nil {
			return Conversation{}, err
		}
		meta = persisted
	}

	r.mu.Lock()
	r.entries[id] = &entry{meta: meta, window: memory.NewWindow(r.historyWindow)}
	r.mu.Unlock()

	r.logger.Debug("opened conversation", "id", id)
	return meta, nil
}

// Get returns the metadata of an open conversation.
func (r *Registry) Get(id uuid.UUID) (Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return e.meta, nil
}

// List returns open conversations, most recently active first.
func (r *Registry) List() []Conversation {
	r.mu.RLock()
	out := make([]Conversation, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.meta)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Delete closes a conversation and discards its window.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if r.store != nil {
		if err := r.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	r.logger.Debug("closed conversation", "id", id)
	return nil
}

// Reset clears a conversation's window, keeping its identity and title.
func (r *Registry) Reset(ctx context.Context, id uuid.UUID) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	e.window.Clear()

	if r.store != nil {
		if err := r.store.Touch(ctx, id); err != nil {
			r.logger.Warn("failed to touch conversation after reset", "id", id, "error", err)
		}
	}
	return nil
}

// AcquireTurn claims the conversation's turn gate and returns its window
// plus a release function. Fails with ErrTurnInFlight when another turn
// holds the gate: turns within a conversation never interleave.
func (r *Registry) AcquireTurn(id uuid.UUID) (*memory.Window, func(), error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return nil, nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if !e.turnMu.TryLock() {
		return nil, nil, fmt.Errorf("conversation %s: %w", id, ErrTurnInFlight)
	}
	return e.window, e.turnMu.Unlock, nil
}

// RecordTurn updates conversation metadata after a successful turn:
// a truncation title on the first turn, and activity timestamps.
// Persistence is best-effort; the turn already succeeded.
func (r *Registry) RecordTurn(ctx context.Context, id uuid.UUID, utterance string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.meta.UpdatedAt = time.Now()
	titled := e.meta.Title == ""
	if titled {
		e.meta.Title = TitleFromUtterance(utterance)
	}
	title := e.meta.Title
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	if titled {
		if err := r.store.SetTitle(ctx, id, title); err != nil {
			r.logger.Warn("failed to persist conversation title", "id", id, "error", err)
		}
		return
	}
	if err := r.store.Touch(ctx, id); err != nil {
		r.logger.Warn("failed to touch conversation", "id", id, "error", err)
	}
}
