package graphstore

import (
	"context"
	"testing"
)

func seedGraph(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertDocument(ctx, "doc1", "Widgets 101"); err != nil {
		t.Fatalf("upsert document: %v", err)
	}
	for i, text := range []string{"Part A connects to Part B", "Safety requires A before B"} {
		chunkID := map[int]string{0: "doc1-0", 1: "doc1-1"}[i]
		if err := s.UpsertChunk(ctx, chunkID, "doc1", i, text, 5); err != nil {
			t.Fatalf("upsert chunk: %v", err)
		}
		if err := s.LinkDocChunk(ctx, "doc1", chunkID); err != nil {
			t.Fatalf("link doc chunk: %v", err)
		}
	}

	for _, e := range []string{"part a", "part b", "safety"} {
		if err := s.UpsertEntity(ctx, e, e); err != nil {
			t.Fatalf("upsert entity: %v", err)
		}
	}
	// doc1-0 mentions both parts; doc1-1 mentions safety.
	_ = s.LinkChunkEntity(ctx, "doc1-0", "part a", RelAbout)
	_ = s.LinkChunkEntity(ctx, "doc1-0", "part b", RelAbout)
	_ = s.LinkChunkEntity(ctx, "doc1-1", "safety", RelAbout)
	return s
}

func TestDegrees(t *testing.T) {
	s := seedGraph(t)
	got, err := s.Degrees(context.Background(), []string{"part a", "safety", "missing"})
	if err != nil {
		t.Fatalf("degrees failed: %v", err)
	}
	if got["part a"] != 1 || got["safety"] != 1 {
		t.Fatalf("unexpected degrees %v", got)
	}
	if got["missing"] != 0 {
		t.Fatalf("missing key should read 0, got %d", got["missing"])
	}
}

func TestDegreesCaseFolded(t *testing.T) {
	s := seedGraph(t)
	got, err := s.Degrees(context.Background(), []string{"  Part A  "})
	if err != nil {
		t.Fatalf("degrees failed: %v", err)
	}
	if got["  Part A  "] != 1 {
		t.Fatalf("case-folded lookup failed: %v", got)
	}
}

func TestLinkIdempotent(t *testing.T) {
	s := seedGraph(t)
	ctx := context.Background()
	// Relinking must not inflate the degree.
	_ = s.LinkChunkEntity(ctx, "doc1-0", "part a", RelAbout)
	_ = s.LinkChunkEntity(ctx, "doc1-0", "part a", RelAbout)

	got, _ := s.Degrees(ctx, []string{"part a"})
	if got["part a"] != 1 {
		t.Fatalf("want degree=1 got=%d", got["part a"])
	}
}

func TestChunksForEntitiesScoring(t *testing.T) {
	s := seedGraph(t)
	out, err := s.ChunksForEntities(context.Background(), []string{"part a", "part b", "safety"}, 10)
	if err != nil {
		t.Fatalf("chunks failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want=2 got=%d", len(out))
	}
	// doc1-0 matches two entities (score 1/3); doc1-1 matches one (1/2).
	if out[0].ID != "doc1-0" {
		t.Fatalf("want doc1-0 first got %s", out[0].ID)
	}
	if out[0].Score >= out[1].Score {
		t.Fatalf("scores not ascending: %v then %v", out[0].Score, out[1].Score)
	}
	if out[0].Metadata.Title != "Widgets 101" {
		t.Fatalf("title not carried: %+v", out[0].Metadata)
	}
}

func TestChunksForEntitiesLimit(t *testing.T) {
	s := seedGraph(t)
	out, err := s.ChunksForEntities(context.Background(), []string{"part a", "safety"}, 1)
	if err != nil {
		t.Fatalf("chunks failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("want=1 got=%d", len(out))
	}
}

func TestChunksForEntitiesUnknownKeys(t *testing.T) {
	s := seedGraph(t)
	out, err := s.ChunksForEntities(context.Background(), []string{"nothing here"}, 5)
	if err != nil {
		t.Fatalf("chunks failed: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("want empty got %v", out)
	}
}

func TestSafeRel(t *testing.T) {
	cases := map[string]string{
		"ABOUT":         "ABOUT",
		"MENTIONS":      "MENTIONS",
		"HAS_CHUNK":     "HAS_CHUNK",
		"about":         "ABOUT",
		"DROP DATABASE": "ABOUT",
		"X) DETACH (n":  "ABOUT",
		"":              "ABOUT",
	}
	for in, want := range cases {
		if got := SafeRel(in); got != want {
			t.Fatalf("SafeRel(%q): want=%q got=%q", in, want, got)
		}
	}
}
