package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier defines the database operations the store needs.
// Interfaces are defined by the consumer: *PoolQuerier is the production
// implementation and tests substitute their own.
type Querier interface {
	CreateConversation(ctx context.Context, id uuid.UUID, title string) (Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	ListConversations(ctx context.Context, limit, offset int32) ([]Conversation, error)
	UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error
	TouchConversation(ctx context.Context, id uuid.UUID, updatedAt time.Time) error
	DeleteConversation(ctx context.Context, id uuid.UUID) error
}

// Store persists conversation metadata.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// NewStore creates a Store. logger may be nil.
func NewStore(querier Querier, logger *slog.Logger) (*Store, error) {
	if querier == nil {
		return nil, errors.New("querier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}, nil
}

// Create persists a new conversation record.
func (s *Store) Create(ctx context.Context, id uuid.UUID, title string) (Conversation, error) {
	conv, err := s.querier.CreateConversation(ctx, id, title)
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.logger.Debug("created conversation", "id", conv.ID)
	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	conv, err := s.querier.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
		}
		return Conversation{}, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}
	return conv, nil
}

// List returns conversations ordered by updated_at descending.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	convs, err := s.querier.ListConversations(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// SetTitle updates a conversation's title.
func (s *Store) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	if err := s.querier.UpdateConversationTitle(ctx, id, title); err != nil {
		return fmt.Errorf("failed to update title for %s: %w", id, err)
	}
	return nil
}

// Touch bumps a conversation's updated_at timestamp.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.TouchConversation(ctx, id, time.Now()); err != nil {
		return fmt.Errorf("failed to touch conversation %s: %w", id, err)
	}
	return nil
}

// Delete removes a conversation record.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	s.logger.Debug("deleted conversation", "id", id)
	return nil
}
