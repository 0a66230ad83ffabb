package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

func TestSQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteStore(logger.NewNop(), dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if got, want := s.Path(), filepath.Join(dir, "vectors.db"); got != want {
		t.Fatalf("want path=%q got=%q", want, got)
	}

	records := []Record{
		{ID: "d-0", Text: "first", Metadata: Metadata{DocID: "d", Ord: 0, Title: "Doc"}, Embedding: []float32{1, 0, 0}},
		{ID: "d-1", Text: "second", Metadata: Metadata{DocID: "d", Ord: 1, Title: "Doc"}, Embedding: []float32{0, 1, 0}},
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if !s.Ping(ctx) {
		t.Fatalf("want ping=true")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// Reopen against the same directory: records load from disk.
	reopened, err := NewSQLiteStore(logger.NewNop(), dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	out, err := reopened.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want=2 got=%d", len(out))
	}
	if out[0].ID != "d-0" {
		t.Fatalf("want closest=d-0 got=%s", out[0].ID)
	}
	if out[0].Metadata.Title != "Doc" || out[0].Metadata.Ord != 0 {
		t.Fatalf("metadata lost on reload: %+v", out[0].Metadata)
	}
}

func TestSQLiteUpsertOverwrites(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteStore(logger.NewNop(), dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	_ = s.Upsert(ctx, []Record{{ID: "x", Text: "old", Embedding: []float32{1}}})
	_ = s.Upsert(ctx, []Record{{ID: "x", Text: "new", Embedding: []float32{2}}})

	out, err := s.Search(ctx, []float32{2}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(out) != 1 || out[0].Text != "new" {
		t.Fatalf("want overwritten record got %+v", out)
	}
}

func TestSQLiteEmptyQueryDeterministic(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteStore(logger.NewNop(), dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	_ = s.Upsert(ctx, []Record{
		{ID: "b", Text: "b", Embedding: []float32{1}},
		{ID: "a", Text: "a", Embedding: []float32{2}},
	})

	out, err := s.Search(ctx, nil, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("want [a] got %v", out)
	}
}

func TestEmbeddingCodecRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3.75}
	out := decodeEmbedding(encodeEmbedding(in))
	if len(out) != len(in) {
		t.Fatalf("want len=%d got=%d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: want=%v got=%v", i, in[i], out[i])
		}
	}
}
