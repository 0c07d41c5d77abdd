package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolQuerier implements Querier on a pgx connection pool.
type PoolQuerier struct {
	pool *pgxpool.Pool
}

// NewPoolQuerier creates a PoolQuerier backed by pool.
func NewPoolQuerier(pool *pgxpool.Pool) *PoolQuerier {
	return &PoolQuerier{pool: pool}
}

// CreateConversation inserts a conversation row and returns it.
func (q *PoolQuerier) CreateConversation(ctx context.Context, id uuid.UUID, title string) (Conversation, error) {
	var conv Conversation
	err := q.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, title)
		 VALUES ($1, $2)
		 RETURNING id, title, created_at, updated_at`,
		id, title,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("inserting conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches a conversation row by ID.
func (q *PoolQuerier) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var conv Conversation
	err := q.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// ListConversations returns rows ordered by updated_at descending.
func (q *PoolQuerier) ListConversations(ctx context.Context, limit, offset int32) ([]Conversation, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, title, created_at, updated_at
		 FROM conversations
		 ORDER BY updated_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return out, nil
}

// UpdateConversationTitle sets the title and bumps updated_at.
func (q *PoolQuerier) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE conversations SET title = $2, updated_at = NOW() WHERE id = $1`,
		id, title,
	)
	return err
}

// TouchConversation sets updated_at.
func (q *PoolQuerier) TouchConversation(ctx context.Context, id uuid.UUID, updatedAt time.Time) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		id, updatedAt,
	)
	return err
}

// DeleteConversation removes a conversation row.
func (q *PoolQuerier) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}
