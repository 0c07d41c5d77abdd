//go:build integration
// +build integration

package retrieval_test

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/lawontip/lawontip/internal/retrieval"
	"github.com/lawontip/lawontip/internal/testutil"
)

// basisVector returns a 768-dim unit vector with a 1 at index i.
func basisVector(i int) []float32 {
	vec := make([]float32, retrieval.VectorDimension)
	vec[i] = 1
	return vec
}

// blend returns the normalized midpoint of two basis directions, giving
// a known cosine similarity of ~0.707 against either.
func blend(i, j int) []float32 {
	vec := make([]float32, retrieval.VectorDimension)
	vec[i] = 0.7071
	vec[j] = 0.7071
	return vec
}

func TestSearch_AgainstPgvector(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	docs := []struct {
		content string
		vec     []float32
	}{
		{"Section 378 defines theft.", basisVector(0)},
		{"Section 379 punishes theft.", blend(0, 1)},
		{"Section 100 covers private defence.", basisVector(1)},
		{"Article 21 protects personal liberty.", basisVector(2)},
		{"Section 420 covers cheating.", basisVector(3)},
	}
	for _, d := range docs {
		_, err := db.Pool.Exec(ctx,
			`INSERT INTO documents (content, metadata, embedding) VALUES ($1, $2, $3)`,
			d.content, []byte(`{"source":"ipc.pdf"}`), pgvector.NewVector(d.vec))
		if err != nil {
			t.Fatalf("inserting fixture document: %v", err)
		}
	}

	const query = "what is theft?"
	embedder := testutil.NewMockEmbedder(int(retrieval.VectorDimension))
	embedder.SetVector(query, basisVector(0))

	store, err := retrieval.New(retrieval.NewPoolQuerier(db.Pool), embedder, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	results, err := store.Search(ctx, query, retrieval.DefaultTopK)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != retrieval.DefaultTopK {
		t.Fatalf("Search() returned %d results, want %d", len(results), retrieval.DefaultTopK)
	}

	if results[0].Document.Content != "Section 378 defines theft." {
		t.Errorf("top result = %q, want exact-match document", results[0].Document.Content)
	}
	if results[1].Document.Content != "Section 379 punishes theft." {
		t.Errorf("second result = %q, want blended document", results[1].Document.Content)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("similarity out of order at %d: %f > %f",
				i, results[i].Similarity, results[i-1].Similarity)
		}
	}
	if got := results[0].Similarity; got < 0.99 {
		t.Errorf("exact-match similarity = %f, want ~1.0", got)
	}
	if got := results[0].Document.Metadata["source"]; got != "ipc.pdf" {
		t.Errorf("metadata source = %q, want %q", got, "ipc.pdf")
	}
}
