package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PoolQuerier implements Querier on a pgx connection pool.
type PoolQuerier struct {
	pool *pgxpool.Pool
}

// NewPoolQuerier creates a PoolQuerier backed by pool.
func NewPoolQuerier(pool *pgxpool.Pool) *PoolQuerier {
	return &PoolQuerier{pool: pool}
}

// SearchDocuments performs the cosine nearest-neighbor query.
// The <=> operator is cosine distance; similarity is its complement.
func (q *PoolQuerier) SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Row, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		 FROM documents
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		embedding, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return out, nil
}
