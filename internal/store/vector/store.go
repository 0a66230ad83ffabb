// Package vector stores chunk embeddings and answers k-NN queries. Two
// implementations satisfy the same contract: a SQLite-backed store persisted
// under VECTOR_DIR and an in-memory fallback. Scores are distances; smaller
// means closer, and callers must not assume any normalization.
package vector

import "context"

// Metadata identifies where a chunk came from.
type Metadata struct {
	DocID string `json:"doc_id"`
	Ord   int    `json:"ord"`
	Title string `json:"title"`
}

// Record is one upserted chunk embedding.
type Record struct {
	ID        string
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// Retrieved is a ranked result from Search (and from graph chunk lookups,
// which share the shape so the retriever can merge the two sources).
type Retrieved struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score"`
}

// Store is the vector index contract. Upsert is idempotent by record ID and
// overwrites metadata and embedding on conflict. Search returns up to k
// results ordered by ascending distance. Implementations are safe for
// concurrent use.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, query []float32, k int) ([]Retrieved, error)
	Ping(ctx context.Context) bool
}

func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	// Dimension mismatch counts the leftover mass as distance.
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return sum
}
