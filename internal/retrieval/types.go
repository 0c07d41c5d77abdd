// Package retrieval provides similarity search over the pre-indexed legal
// corpus. The index itself is built out of band; this package only queries it.
package retrieval

import (
	"context"
	"errors"
)

// VectorDimension is the embedding width of the documents schema.
// Embedders that output wider vectors are truncated to this
// dimensionality at embed time (Matryoshka representation).
const VectorDimension int32 = 768

// DefaultTopK is the number of documents retrieved per query when the
// caller does not specify one.
const DefaultTopK = 4

// ErrUnavailable indicates the corpus index cannot be loaded or queried.
// Terminal for the current turn: callers must not attempt a degraded answer.
var ErrUnavailable = errors.New("retrieval unavailable")

// Document is one retrieved corpus snippet.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string // provenance (source, statute), opaque to generation
}

// Result pairs a document with its similarity to the query.
type Result struct {
	Document   Document
	Similarity float32 // cosine similarity, descending across a result set
}

// Searcher is the retrieval client consumed by the engine.
// Implementations return at most topK results ordered by descending
// similarity, and wrap failures in ErrUnavailable.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Result, error)
}
