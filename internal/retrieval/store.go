package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// searchTimeout bounds a single vector search, embedding included.
const searchTimeout = 10 * time.Second

// Row is a raw search hit as returned by the database layer.
type Row struct {
	ID         string
	Content    string
	Metadata   []byte // JSONB payload
	Similarity float32
}

// Querier defines the database operations the store needs.
// Interface is defined here, by the consumer; *PoolQuerier is the
// production implementation and tests substitute their own.
type Querier interface {
	// SearchDocuments returns up to limit rows ordered by descending
	// similarity to the embedding.
	SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Row, error)
}

// Store answers similarity queries against the documents table.
// Query text is embedded with the configured embedder, then matched by
// cosine distance in pgvector.
//
// Store is safe for concurrent use.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. logger may be nil.
func New(queries Querier, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if queries == nil {
		return nil, errors.New("querier is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, embedder: embedder, logger: logger}, nil
}

// Search implements Searcher. Results are ordered most relevant first;
// fewer than topK rows are returned when the corpus has fewer matches.
// Every failure wraps ErrUnavailable - for the caller the index is
// equally unusable whether embedding or querying broke.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrUnavailable, err)
	}

	rows, err := s.queries.SearchDocuments(queryCtx, embedding, int32(topK)) // #nosec G115 -- topK is a small positive config value
	if err != nil {
		return nil, fmt.Errorf("%w: searching documents: %w", ErrUnavailable, err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		doc := Document{ID: row.ID, Content: row.Content}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &doc.Metadata); err != nil {
				s.logger.Warn("skipping malformed document metadata", "id", row.ID, "error", err)
			}
		}
		results = append(results, Result{Document: doc, Similarity: row.Similarity})
	}

	s.logger.Debug("retrieved documents", "query_len", len(query), "topK", topK, "hits", len(results))
	return results, nil
}

// embed generates the query embedding at the schema's dimensionality.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
