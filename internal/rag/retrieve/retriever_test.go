package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/embed"
	"github.com/deskmate/deskmate-backend/internal/rag/planner"
	"github.com/deskmate/deskmate-backend/internal/store/graphstore"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

func seedStores(t *testing.T) (*vector.MemoryStore, *graphstore.MemoryStore, embed.Provider) {
	t.Helper()
	ctx := context.Background()
	embedder := embed.NewStubProvider(16)
	vectors := vector.NewMemoryStore()
	graph := graphstore.NewMemoryStore()

	texts := []string{"Part A connects to Part B", "Safety requires A before B", "Unrelated cooking recipe"}
	ids := []string{"doc1-0", "doc1-1", "doc2-0"}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	records := make([]vector.Record, len(texts))
	for i := range texts {
		docID := "doc1"
		if i == 2 {
			docID = "doc2"
		}
		records[i] = vector.Record{
			ID:        ids[i],
			Text:      texts[i],
			Metadata:  vector.Metadata{DocID: docID, Ord: i, Title: "T"},
			Embedding: vecs[i],
		}
	}
	if err := vectors.Upsert(ctx, records); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	_ = graph.UpsertDocument(ctx, "doc1", "T")
	for i := 0; i < 2; i++ {
		_ = graph.UpsertChunk(ctx, ids[i], "doc1", i, texts[i], 5)
		_ = graph.LinkDocChunk(ctx, "doc1", ids[i])
	}
	_ = graph.UpsertEntity(ctx, "part a", "part a")
	_ = graph.LinkChunkEntity(ctx, "doc1-0", "part a", graphstore.RelAbout)
	_ = graph.LinkChunkEntity(ctx, "doc1-1", "part a", graphstore.RelAbout)

	return vectors, graph, embedder
}

func TestVectorMode(t *testing.T) {
	vectors, graph, embedder := seedStores(t)
	r := New(logger.NewNop(), vectors, graph, embedder)

	out, fallbacks, err := r.Retrieve(context.Background(), "Part A connects to Part B", planner.Decision{
		Mode: planner.ModeVector,
		TopK: 2,
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(fallbacks) != 0 {
		t.Fatalf("want no fallbacks got %v", fallbacks)
	}
	if len(out) != 2 {
		t.Fatalf("want=2 got=%d", len(out))
	}
	// Stub embeddings are deterministic, so the exact-text chunk is closest.
	if out[0].ID != "doc1-0" {
		t.Fatalf("want doc1-0 first got %s", out[0].ID)
	}
}

func TestGraphMode(t *testing.T) {
	vectors, graph, embedder := seedStores(t)
	r := New(logger.NewNop(), vectors, graph, embedder)

	out, fallbacks, err := r.Retrieve(context.Background(), "Part A", planner.Decision{
		Mode:     planner.ModeGraph,
		TopK:     5,
		Entities: []string{"part a"},
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(fallbacks) != 0 {
		t.Fatalf("want no fallbacks got %v", fallbacks)
	}
	if len(out) != 2 {
		t.Fatalf("want=2 graph chunks got=%d", len(out))
	}
}

func TestGraphModeFallsBackToVector(t *testing.T) {
	vectors, graph, embedder := seedStores(t)
	r := New(logger.NewNop(), vectors, graph, embedder)

	out, fallbacks, err := r.Retrieve(context.Background(), "anything", planner.Decision{
		Mode:     planner.ModeGraph,
		TopK:     2,
		Entities: []string{"unknown entity"},
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(fallbacks) == 0 {
		t.Fatalf("want recorded fallback reason")
	}
	if len(out) != 2 {
		t.Fatalf("want vector results got=%d", len(out))
	}
}

func TestHybridIntersection(t *testing.T) {
	vectors, graph, embedder := seedStores(t)
	r := New(logger.NewNop(), vectors, graph, embedder)

	out, fallbacks, err := r.Retrieve(context.Background(), "Part A connects to Part B", planner.Decision{
		Mode:     planner.ModeHybrid,
		TopK:     3,
		Entities: []string{"part a"},
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(fallbacks) != 0 {
		t.Fatalf("want clean intersection got fallbacks %v", fallbacks)
	}
	// Every returned chunk must be graph-reachable: doc2-0 is filtered out.
	for _, item := range out {
		if item.ID == "doc2-0" {
			t.Fatalf("non-graph chunk leaked through hybrid filter: %v", out)
		}
	}
	if len(out) == 0 {
		t.Fatalf("want nonempty intersection")
	}
}

func TestHybridEmptyGraphFallsBackToVector(t *testing.T) {
	vectors, graph, embedder := seedStores(t)
	r := New(logger.NewNop(), vectors, graph, embedder)

	out, fallbacks, err := r.Retrieve(context.Background(), "Unrelated cooking recipe", planner.Decision{
		Mode:     planner.ModeHybrid,
		TopK:     2,
		Entities: []string{"nonexistent"},
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(fallbacks) == 0 {
		t.Fatalf("want recorded fallback reason")
	}
	if len(out) != 2 {
		t.Fatalf("want vector results got=%d", len(out))
	}
}

func TestHybridDisjointResultsReturnVectorsUnfiltered(t *testing.T) {
	ctx := context.Background()
	embedder := embed.NewStubProvider(16)
	vectors := vector.NewMemoryStore()
	graph := graphstore.NewMemoryStore()

	// Vector store and graph store know entirely different chunk ids, so the
	// hybrid intersection is empty while both sides return results.
	vecs, err := embedder.Embed(ctx, []string{"Vector-only chunk about part a"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if err := vectors.Upsert(ctx, []vector.Record{{
		ID:        "docV-0",
		Text:      "Vector-only chunk about part a",
		Metadata:  vector.Metadata{DocID: "docV", Ord: 0, Title: "V"},
		Embedding: vecs[0],
	}}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	_ = graph.UpsertDocument(ctx, "docG", "G")
	_ = graph.UpsertChunk(ctx, "docG-0", "docG", 0, "Graph-only chunk about part a", 5)
	_ = graph.LinkDocChunk(ctx, "docG", "docG-0")
	_ = graph.UpsertEntity(ctx, "part a", "part a")
	_ = graph.LinkChunkEntity(ctx, "docG-0", "part a", graphstore.RelAbout)

	r := New(logger.NewNop(), vectors, graph, embedder)
	out, fallbacks, err := r.Retrieve(ctx, "part a", planner.Decision{
		Mode:     planner.ModeHybrid,
		TopK:     5,
		Entities: []string{"part a"},
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != "docV-0" {
		t.Fatalf("want unfiltered vector results [docV-0] got %v", out)
	}
	if len(fallbacks) != 1 || fallbacks[0] != "empty graph/vector intersection; vectors unfiltered" {
		t.Fatalf("unexpected fallback reasons %v", fallbacks)
	}
}

func TestHybridVectorWipedServesGraphChunks(t *testing.T) {
	vectors, graph, embedder := seedStores(t)
	r := New(logger.NewNop(), vectors, graph, embedder)

	// Simulate the vector store wiped out from under the graph store.
	vectors.Purge()

	out, fallbacks, err := r.Retrieve(context.Background(), "Part A", planner.Decision{
		Mode:     planner.ModeHybrid,
		TopK:     5,
		Entities: []string{"part a"},
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want graph chunks got=%d", len(out))
	}
	if len(fallbacks) == 0 {
		t.Fatalf("want recorded fallback reason")
	}
}

type failingGraph struct{ graphstore.Store }

func (f failingGraph) ChunksForEntities(ctx context.Context, keys []string, limit int) ([]vector.Retrieved, error) {
	return nil, errors.New("graph down")
}

func TestGraphStoreErrorDegradesToVector(t *testing.T) {
	vectors, graph, embedder := seedStores(t)
	r := New(logger.NewNop(), vectors, failingGraph{graph}, embedder)

	out, fallbacks, err := r.Retrieve(context.Background(), "Part A", planner.Decision{
		Mode:     planner.ModeGraph,
		TopK:     2,
		Entities: []string{"part a"},
	})
	if err != nil {
		t.Fatalf("retrieve must not fail on store error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want vector fallback results got=%d", len(out))
	}
	if len(fallbacks) == 0 {
		t.Fatalf("want recorded fallback reason")
	}
}
