package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/deskmate/deskmate-backend/internal/model"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/planner"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

type fakeProvider struct {
	name string
	text string
	err  error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.text, p.err
}

func chunk(docID, id, title, text string, score float64) vector.Retrieved {
	return vector.Retrieved{
		ID:       id,
		Text:     text,
		Metadata: vector.Metadata{DocID: docID, Title: title},
		Score:    score,
	}
}

func TestComposePromptCitesChunks(t *testing.T) {
	chunks := []vector.Retrieved{
		chunk("doc1", "doc1-0", "Widgets 101", "Part A connects\nto Part B", 0.1),
		chunk("doc1", "doc1-1", "", "Safety first", 0.2),
	}
	prompt := ComposePrompt("  How does A connect?  ", chunks)

	if !strings.Contains(prompt, "[doc1:doc1-0] Widgets 101: Part A connects to Part B") {
		t.Fatalf("missing cited context line:\n%s", prompt)
	}
	// Untitled chunks fall back to the doc id.
	if !strings.Contains(prompt, "[doc1:doc1-1] doc1: Safety first") {
		t.Fatalf("missing untitled context line:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Question: How does A connect?\nAnswer:") {
		t.Fatalf("question not trimmed into tail:\n%s", prompt)
	}
}

func TestComposePromptEmptyContext(t *testing.T) {
	prompt := ComposePrompt("anything", nil)
	if !strings.Contains(prompt, "(no context available)") {
		t.Fatalf("missing empty-context marker:\n%s", prompt)
	}
}

func TestComposePromptTruncatesSnippets(t *testing.T) {
	long := strings.Repeat("word ", 300)
	prompt := ComposePrompt("q", []vector.Retrieved{chunk("d", "d-0", "T", long, 0)})
	if !strings.Contains(prompt, "…") {
		t.Fatalf("long snippet not truncated")
	}
}

func TestAnswerStubShortCircuits(t *testing.T) {
	r := New(logger.NewNop(), model.NewStubProvider())
	out := r.Answer(context.Background(), "q", planner.Decision{Mode: planner.ModeVector}, nil)

	if out.Answer != model.DefaultStubAnswer {
		t.Fatalf("want=%q got=%q", model.DefaultStubAnswer, out.Answer)
	}
	if out.Provider != "stub" {
		t.Fatalf("want provider=stub got=%q", out.Provider)
	}
	if out.Confidence != 0.5 {
		t.Fatalf("want neutral confidence=0.5 got=%v", out.Confidence)
	}
}

func TestAnswerProviderFailureFallsBack(t *testing.T) {
	p := &fakeProvider{name: "ollama:phi3:mini", err: errors.New("connection refused")}
	r := New(logger.NewNop(), p)

	out := r.Answer(context.Background(), "q", planner.Decision{}, nil)
	if !strings.HasPrefix(out.Answer, FallbackPrefix) {
		t.Fatalf("want fallback prefix got=%q", out.Answer)
	}
	if out.Answer != FallbackPrefix+model.DefaultStubAnswer {
		t.Fatalf("want prefixed stub answer got=%q", out.Answer)
	}
	// The configured provider name stays on the response.
	if out.Provider != "ollama:phi3:mini" {
		t.Fatalf("want configured provider got=%q", out.Provider)
	}
}

func TestAnswerCarriesCitations(t *testing.T) {
	chunks := []vector.Retrieved{
		chunk("doc1", "doc1-0", "T", "first", 0.1),
		chunk("doc2", "doc2-0", "T", "second", 0.3),
	}
	p := &fakeProvider{name: "fake", text: "grounded answer [doc1:doc1-0]"}
	r := New(logger.NewNop(), p)

	out := r.Answer(context.Background(), "q", planner.Decision{}, chunks)
	if len(out.Citations) != 2 {
		t.Fatalf("want=2 citations got=%d", len(out.Citations))
	}
	if out.Citations[0].DocID != "doc1" || out.Citations[0].ChunkID != "doc1-0" {
		t.Fatalf("citation order lost: %+v", out.Citations)
	}
	if out.Citations[1].Score != 0.3 {
		t.Fatalf("score not carried: %+v", out.Citations[1])
	}
}

func TestConfidence(t *testing.T) {
	if got := Confidence(nil); got != 0.5 {
		t.Fatalf("no scores: want=0.5 got=%v", got)
	}
	if got := Confidence([]float64{0}); got != 0.99 {
		t.Fatalf("zero distance: want=0.99 got=%v", got)
	}
	if got := Confidence([]float64{1000}); got != 0.1 {
		t.Fatalf("huge distance: want floor 0.1 got=%v", got)
	}
	near := Confidence([]float64{0.2, 0.2})
	far := Confidence([]float64{2.0, 2.0})
	if near <= far {
		t.Fatalf("closer chunks must score higher: near=%v far=%v", near, far)
	}
}
