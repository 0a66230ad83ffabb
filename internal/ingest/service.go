// Package ingest orchestrates chunking, embedding, and dual-index persistence
// for new documents.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deskmate/deskmate-backend/internal/crawl"
	"github.com/deskmate/deskmate-backend/internal/platform/apierr"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/chunker"
	"github.com/deskmate/deskmate-backend/internal/rag/embed"
	"github.com/deskmate/deskmate-backend/internal/rag/entities"
	"github.com/deskmate/deskmate-backend/internal/store/graphstore"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

// PDFToText converts raw PDF bytes to extracted text with form feeds between
// pages. Injected so the service stays free of any extraction library.
type PDFToText func(data []byte) (string, error)

// Result reports what one ingest call produced.
type Result struct {
	Chunks      int   `json:"chunks"`
	Entities    int   `json:"entities"`
	VectorCount int   `json:"vector_count"`
	MS          int64 `json:"ms"`
	Pages       int   `json:"pages,omitempty"`
}

// Service runs the ingest pipeline. Each call creates a fresh document;
// identical inputs ingested twice become two documents — deduplication is
// the caller's concern.
type Service struct {
	log         *logger.Logger
	embedder    embed.Provider
	vectors     vector.Store
	graph       graphstore.Store
	chunkTokens int
	overlap     int
	pdfToText   PDFToText
	crawler     *crawl.Crawler
}

func NewService(log *logger.Logger, embedder embed.Provider, vectors vector.Store, graph graphstore.Store, chunkTokens, overlap int) *Service {
	return &Service{
		log:         log.With("service", "IngestService"),
		embedder:    embedder,
		vectors:     vectors,
		graph:       graph,
		chunkTokens: chunkTokens,
		overlap:     overlap,
	}
}

// WithPDFExtractor installs the PDF byte-to-text function.
func (s *Service) WithPDFExtractor(fn PDFToText) *Service {
	s.pdfToText = fn
	return s
}

// WithCrawler installs the crawler used by IngestURL.
func (s *Service) WithCrawler(c *crawl.Crawler) *Service {
	s.crawler = c
	return s
}

// IngestText chunks, embeds, and writes one document to both stores.
//
// An embedding failure aborts before any store write. The vector upsert runs
// before any graph write, so a chunk reachable through the graph always has
// a vector record; the reverse does not hold when a graph write fails, which
// is an accepted partial ingest.
func (s *Service) IngestText(ctx context.Context, title, text string) (Result, error) {
	started := time.Now()

	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}

	chunks := chunker.Split(text, s.chunkTokens, s.overlap)
	if len(chunks) == 0 {
		return Result{MS: time.Since(started).Milliseconds()}, nil
	}

	docID := newDocID()
	chunkIDs := make([]string, len(chunks))
	chunkTexts := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = fmt.Sprintf("%s-%d", docID, c.Ord)
		chunkTexts[i] = c.Text
	}

	embeddings, err := s.embedder.Embed(ctx, chunkTexts)
	if err != nil {
		return Result{}, err
	}
	if len(embeddings) != len(chunks) {
		return Result{}, apierr.Provider("embed_count_mismatch",
			fmt.Errorf("chunks=%d embeddings=%d", len(chunks), len(embeddings)))
	}

	records := make([]vector.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Record{
			ID:   chunkIDs[i],
			Text: c.Text,
			Metadata: vector.Metadata{
				DocID: docID,
				Ord:   c.Ord,
				Title: title,
			},
			Embedding: embeddings[i],
		}
	}

	if err := s.vectors.Upsert(ctx, records); err != nil {
		return Result{}, apierr.Store("vector_upsert_failed", err)
	}

	if err := s.writeGraph(ctx, docID, title, chunks, chunkIDs); err != nil {
		// Vector records are already committed; the inconsistency is
		// partial graph edges, not orphaned graph chunks.
		s.log.Warn("Graph writes failed after vector upsert", "doc_id", docID, "error", err)
		return Result{}, apierr.Store("graph_upsert_failed", err)
	}

	extracted := entities.Extract(chunkTexts)
	if err := s.linkEntities(ctx, extracted, chunks, chunkIDs); err != nil {
		s.log.Warn("Entity linking failed", "doc_id", docID, "error", err)
		return Result{}, apierr.Store("entity_link_failed", err)
	}

	return Result{
		Chunks:      len(chunks),
		Entities:    len(extracted),
		VectorCount: len(records),
		MS:          time.Since(started).Milliseconds(),
	}, nil
}

func (s *Service) writeGraph(ctx context.Context, docID, title string, chunks []chunker.Chunk, chunkIDs []string) error {
	if err := s.graph.UpsertDocument(ctx, docID, title); err != nil {
		return err
	}
	for i, c := range chunks {
		if err := s.graph.UpsertChunk(ctx, chunkIDs[i], docID, c.Ord, c.Text, c.Tokens); err != nil {
			return err
		}
		if err := s.graph.LinkDocChunk(ctx, docID, chunkIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

// linkEntities creates one ABOUT edge per (chunk, entity) pair where the
// entity key appears as a substring of the lowercased chunk text.
func (s *Service) linkEntities(ctx context.Context, extracted []string, chunks []chunker.Chunk, chunkIDs []string) error {
	lowered := make([]string, len(chunks))
	for i, c := range chunks {
		lowered[i] = strings.ToLower(c.Text)
	}
	for _, entity := range extracted {
		if err := s.graph.UpsertEntity(ctx, entity, entity); err != nil {
			return err
		}
		for i := range chunks {
			if strings.Contains(lowered[i], entity) {
				if err := s.graph.LinkChunkEntity(ctx, chunkIDs[i], entity, graphstore.RelAbout); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// IngestPDF extracts text via the injected converter and delegates to
// IngestText. The page count is inferred from form-feed separators.
func (s *Service) IngestPDF(ctx context.Context, title string, data []byte) (Result, error) {
	started := time.Now()
	if s.pdfToText == nil {
		return Result{}, apierr.BadInput("pdf_unsupported", fmt.Errorf("no PDF extractor configured"))
	}

	text, err := s.pdfToText(data)
	if err != nil {
		return Result{}, apierr.BadInput("pdf_extract_failed", err)
	}
	pages := 0
	if text != "" {
		pages = strings.Count(text, "\f") + 1
	}

	result, err := s.IngestText(ctx, title, text)
	if err != nil {
		return Result{}, err
	}
	result.Pages = pages
	result.MS = time.Since(started).Milliseconds()
	return result, nil
}

// IngestURL crawls same-origin pages from the root URL and ingests each page
// as its own document titled with the page URL. Counts are summed across
// pages.
func (s *Service) IngestURL(ctx context.Context, root string, limits crawl.Limits) (Result, error) {
	started := time.Now()
	if s.crawler == nil {
		return Result{}, apierr.BadInput("url_ingest_disabled", fmt.Errorf("no crawler configured"))
	}

	crawled, err := s.crawler.Crawl(ctx, root, limits)
	if err != nil {
		return Result{}, err
	}
	if len(crawled.Pages) == 0 {
		return Result{MS: time.Since(started).Milliseconds()}, nil
	}

	var total Result
	for _, page := range crawled.Pages {
		res, err := s.IngestText(ctx, page.URL, page.Content)
		if err != nil {
			return Result{}, err
		}
		total.Chunks += res.Chunks
		total.Entities += res.Entities
		total.VectorCount += res.VectorCount
	}
	total.Pages = len(crawled.Pages)
	total.MS = time.Since(started).Milliseconds()
	return total, nil
}

func newDocID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
