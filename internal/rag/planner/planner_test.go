package planner

import (
	"context"
	"testing"

	"github.com/deskmate/deskmate-backend/internal/store/graphstore"
)

func seedEntities(t *testing.T, s *graphstore.MemoryStore, key string, chunkCount int) {
	t.Helper()
	ctx := context.Background()
	if err := s.UpsertEntity(ctx, key, key); err != nil {
		t.Fatalf("upsert entity: %v", err)
	}
	for i := 0; i < chunkCount; i++ {
		chunkID := key + "-chunk-" + string(rune('a'+i))
		if err := s.UpsertChunk(ctx, chunkID, "doc", i, key, 1); err != nil {
			t.Fatalf("upsert chunk: %v", err)
		}
		if err := s.LinkChunkEntity(ctx, chunkID, key, graphstore.RelAbout); err != nil {
			t.Fatalf("link: %v", err)
		}
	}
}

func TestPlanVectorWhenGraphEmpty(t *testing.T) {
	p := New(graphstore.NewMemoryStore(), 6)
	d, err := p.Plan(context.Background(), "How do widgets work?")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if d.Mode != ModeVector {
		t.Fatalf("want=VECTOR got=%s", d.Mode)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != "no graph entities" {
		t.Fatalf("unexpected reasons %v", d.Reasons)
	}
	if len(d.Entities) != 0 {
		t.Fatalf("want no entities got %v", d.Entities)
	}
	if d.TopK != 6 {
		t.Fatalf("want top_k=6 got=%d", d.TopK)
	}
}

func TestPlanGraphAtThreshold(t *testing.T) {
	s := graphstore.NewMemoryStore()
	seedEntities(t, s, "widget", GraphThreshold)

	p := New(s, 6)
	d, err := p.Plan(context.Background(), "Tell me about the Widget")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if d.Mode != ModeGraph {
		t.Fatalf("want=GRAPH got=%s", d.Mode)
	}
	if len(d.Entities) != 1 || d.Entities[0] != "widget" {
		t.Fatalf("want positive-degree entities [widget] got %v", d.Entities)
	}
}

func TestPlanHybridBelowThreshold(t *testing.T) {
	s := graphstore.NewMemoryStore()
	seedEntities(t, s, "widget", GraphThreshold-1)

	p := New(s, 6)
	d, err := p.Plan(context.Background(), "Tell me about the Widget")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if d.Mode != ModeHybrid {
		t.Fatalf("want=HYBRID got=%s", d.Mode)
	}
	if len(d.Reasons) != 1 || d.Reasons[0] != "graph is sparse" {
		t.Fatalf("unexpected reasons %v", d.Reasons)
	}
}

func TestPlanFiltersZeroDegreeEntities(t *testing.T) {
	s := graphstore.NewMemoryStore()
	seedEntities(t, s, "widget", 1)

	p := New(s, 6)
	d, err := p.Plan(context.Background(), "Does the Widget affect the Sprocket?")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	for _, e := range d.Entities {
		if e == "sprocket" {
			t.Fatalf("zero-degree entity leaked into %v", d.Entities)
		}
	}
}

func TestPlanTopKClamp(t *testing.T) {
	p := New(graphstore.NewMemoryStore(), 0)
	d, err := p.Plan(context.Background(), "anything")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if d.TopK != 6 {
		t.Fatalf("want clamped top_k=6 got=%d", d.TopK)
	}
}
