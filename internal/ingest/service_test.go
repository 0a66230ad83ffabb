package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deskmate/deskmate-backend/internal/crawl"
	"github.com/deskmate/deskmate-backend/internal/platform/apierr"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/embed"
	"github.com/deskmate/deskmate-backend/internal/store/graphstore"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

func newService(t *testing.T) (*Service, *vector.MemoryStore, *graphstore.MemoryStore) {
	t.Helper()
	vectors := vector.NewMemoryStore()
	graph := graphstore.NewMemoryStore()
	svc := NewService(logger.NewNop(), embed.NewStubProvider(16), vectors, graph, 50, 10)
	return svc, vectors, graph
}

func TestIngestTextCounts(t *testing.T) {
	svc, vectors, _ := newService(t)

	text := strings.Repeat("The Widget requires careful assembly before use. ", 40)
	res, err := svc.IngestText(context.Background(), "Widgets 101", text)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if res.Chunks < 2 {
		t.Fatalf("want multiple chunks got=%d", res.Chunks)
	}
	// Every chunk lands in the vector store exactly once.
	if res.VectorCount != res.Chunks {
		t.Fatalf("vector_count=%d chunks=%d", res.VectorCount, res.Chunks)
	}
	if vectors.Len() != res.Chunks {
		t.Fatalf("store holds %d records, result says %d", vectors.Len(), res.Chunks)
	}
	if res.Entities == 0 {
		t.Fatalf("want extracted entities")
	}
}

func TestIngestTextGraphMirrorsChunks(t *testing.T) {
	svc, _, graph := newService(t)
	ctx := context.Background()

	text := strings.Repeat("The Widget requires careful assembly before use. ", 40)
	res, err := svc.IngestText(ctx, "Widgets 101", text)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	// "widget" appears in every chunk, so the graph must reach all of them.
	out, err := graph.ChunksForEntities(ctx, []string{"widget"}, res.Chunks+10)
	if err != nil {
		t.Fatalf("graph lookup failed: %v", err)
	}
	if len(out) != res.Chunks {
		t.Fatalf("graph reaches %d chunks, ingest reported %d", len(out), res.Chunks)
	}
	for _, item := range out {
		if item.Metadata.Title != "Widgets 101" {
			t.Fatalf("title not carried into graph: %+v", item.Metadata)
		}
	}
}

func TestIngestTextEmptyInput(t *testing.T) {
	svc, vectors, _ := newService(t)

	res, err := svc.IngestText(context.Background(), "Empty", "   \n\t  ")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if res.Chunks != 0 || res.Entities != 0 || res.VectorCount != 0 {
		t.Fatalf("want zero result got %+v", res)
	}
	if vectors.Len() != 0 {
		t.Fatalf("empty input must not write records, store has %d", vectors.Len())
	}
}

func TestIngestTextDefaultTitle(t *testing.T) {
	svc, _, graph := newService(t)
	ctx := context.Background()

	if _, err := svc.IngestText(ctx, "  ", "The Widget requires assembly."); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	out, err := graph.ChunksForEntities(ctx, []string{"widget"}, 1)
	if err != nil || len(out) != 1 {
		t.Fatalf("graph lookup: %v %v", out, err)
	}
	if out[0].Metadata.Title != "Untitled" {
		t.Fatalf("want=Untitled got=%q", out[0].Metadata.Title)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Name() string { return "failing" }

func (failingEmbedder) Dim() int { return 16 }

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embed backend down")
}

func TestIngestTextEmbedFailureAbortsBeforeWrites(t *testing.T) {
	vectors := vector.NewMemoryStore()
	graph := graphstore.NewMemoryStore()
	svc := NewService(logger.NewNop(), failingEmbedder{}, vectors, graph, 50, 10)

	_, err := svc.IngestText(context.Background(), "T", "Some text to ingest here.")
	if err == nil {
		t.Fatalf("want error from failing embedder")
	}
	if vectors.Len() != 0 {
		t.Fatalf("embed failure must leave the vector store untouched, got %d records", vectors.Len())
	}
	out, _ := graph.ChunksForEntities(context.Background(), []string{"text"}, 5)
	if len(out) != 0 {
		t.Fatalf("embed failure must leave the graph untouched, got %v", out)
	}
}

func TestIngestTextAccumulatesDegrees(t *testing.T) {
	svc, _, graph := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.IngestText(ctx, "T", "The Widget requires assembly."); err != nil {
			t.Fatalf("ingest %d failed: %v", i, err)
		}
	}
	degrees, err := graph.Degrees(ctx, []string{"widget"})
	if err != nil {
		t.Fatalf("degrees failed: %v", err)
	}
	// Three separate documents, one widget chunk each.
	if degrees["widget"] != 3 {
		t.Fatalf("want degree=3 got=%d", degrees["widget"])
	}
}

func TestIngestPDFPages(t *testing.T) {
	svc, _, _ := newService(t)
	svc.WithPDFExtractor(func(data []byte) (string, error) {
		return "Page one about the Widget.\fPage two about Safety.", nil
	})

	res, err := svc.IngestPDF(context.Background(), "Manual", []byte("%PDF-fake"))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if res.Pages != 2 {
		t.Fatalf("want pages=2 got=%d", res.Pages)
	}
	if res.Chunks == 0 {
		t.Fatalf("want chunks from extracted text")
	}
}

func TestIngestPDFWithoutExtractor(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.IngestPDF(context.Background(), "Manual", []byte("%PDF"))
	if !apierr.IsKind(err, apierr.KindBadInput) {
		t.Fatalf("want bad-input error got %v", err)
	}
}

func TestIngestPDFExtractFailure(t *testing.T) {
	svc, _, _ := newService(t)
	svc.WithPDFExtractor(func(data []byte) (string, error) {
		return "", errors.New("corrupt xref table")
	})
	_, err := svc.IngestPDF(context.Background(), "Manual", []byte("junk"))
	if !apierr.IsKind(err, apierr.KindBadInput) {
		t.Fatalf("want bad-input error got %v", err)
	}
}

func TestIngestURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
			<p>The Widget knowledge base.</p>
			<a href="/guide">guide</a></body></html>`))
	})
	mux.HandleFunc("/guide", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Guide</title></head><body>
			<p>Assemble the Widget before powering on.</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, vectors, _ := newService(t)
	svc.WithCrawler(crawl.New(logger.NewNop()))

	res, err := svc.IngestURL(context.Background(), srv.URL, crawl.Limits{
		MaxDepth:      2,
		MaxPages:      10,
		MaxTotalChars: 100000,
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if res.Pages != 2 {
		t.Fatalf("want pages=2 got=%d", res.Pages)
	}
	if res.Chunks == 0 || vectors.Len() != res.VectorCount {
		t.Fatalf("counts out of sync: %+v store=%d", res, vectors.Len())
	}
}

func TestIngestURLWithoutCrawler(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.IngestURL(context.Background(), "http://example.com", crawl.Limits{})
	if !apierr.IsKind(err, apierr.KindBadInput) {
		t.Fatalf("want bad-input error got %v", err)
	}
}
