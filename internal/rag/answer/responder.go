// Package answer composes the grounded prompt, calls the language-model
// provider, and assembles the final response with citations and confidence.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deskmate/deskmate-backend/internal/model"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/planner"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

// FallbackPrefix introduces the stub answer when the configured provider
// fails at generation time.
const FallbackPrefix = "Model provider unavailable; falling back to stub. "

const snippetLimit = 500

const promptHeader = "You are DeskMate, a helpful service desk copilot.\n" +
	"Use ONLY the provided context to answer.\n" +
	"Cite supporting evidence with [doc_id:chunk_id] tags that already exist in the context."

// Citation points an answer at one retrieved chunk, in retrieval order.
type Citation struct {
	DocID   string  `json:"doc_id"`
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Title   string  `json:"title,omitempty"`
	Snippet string  `json:"snippet,omitempty"`
}

// Response is the full ask payload.
type Response struct {
	Answer     string           `json:"answer"`
	Provider   string           `json:"provider"`
	Question   string           `json:"question"`
	Citations  []Citation       `json:"citations"`
	Planner    planner.Decision `json:"planner"`
	LatencyMS  int64            `json:"latency_ms"`
	Confidence float64          `json:"confidence"`
}

type Responder struct {
	log      *logger.Logger
	provider model.Provider
}

func New(log *logger.Logger, provider model.Provider) *Responder {
	return &Responder{
		log:      log.With("service", "Responder"),
		provider: provider,
	}
}

// ComposePrompt builds the prompt: persona header, enumerated context block
// with 500-char snippets, then the question.
func ComposePrompt(question string, chunks []vector.Retrieved) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nContext:\n")

	if len(chunks) == 0 {
		b.WriteString("(no context available)")
	} else {
		for i, chunk := range chunks {
			if i > 0 {
				b.WriteByte('\n')
			}
			title := chunk.Metadata.Title
			if title == "" {
				title = chunk.Metadata.DocID
			}
			snippet := flatten(chunk.Text)
			fmt.Fprintf(&b, "[%s:%s] %s: %s", chunk.Metadata.DocID, chunk.ID, title, snippet)
		}
	}

	fmt.Fprintf(&b, "\n\nQuestion: %s\nAnswer:", strings.TrimSpace(question))
	return b.String()
}

func flatten(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if len(s) > snippetLimit {
		s = strings.TrimSpace(s[:snippetLimit-1]) + "…"
	}
	return s
}

// Answer generates the response. A configured stub provider short-circuits
// without a generate call; any other provider failure downgrades to the
// prefixed stub answer and keeps the configured provider's name in the
// response. The answer string is never empty.
func (r *Responder) Answer(ctx context.Context, question string, decision planner.Decision, chunks []vector.Retrieved) Response {
	started := time.Now()
	prompt := ComposePrompt(question, chunks)

	providerName := r.provider.Name()
	var answerText string
	if providerName == "stub" {
		answerText = model.DefaultStubAnswer
	} else {
		text, err := r.provider.Generate(ctx, prompt)
		if err != nil {
			r.log.Warn("Provider failed; using stub fallback", "provider", providerName, "error", err)
			answerText = FallbackPrefix + model.DefaultStubAnswer
		} else {
			answerText = text
		}
	}

	citations := make([]Citation, 0, len(chunks))
	scores := make([]float64, 0, len(chunks))
	for _, chunk := range chunks {
		citations = append(citations, Citation{
			DocID:   chunk.Metadata.DocID,
			ChunkID: chunk.ID,
			Score:   chunk.Score,
			Title:   chunk.Metadata.Title,
			Snippet: chunk.Text,
		})
		scores = append(scores, chunk.Score)
	}

	return Response{
		Answer:     answerText,
		Provider:   providerName,
		Question:   question,
		Citations:  citations,
		Planner:    decision,
		LatencyMS:  time.Since(started).Milliseconds(),
		Confidence: Confidence(scores),
	}
}

// Confidence maps mean retrieval distance to [0.1, 0.99]; closer chunks
// produce higher confidence. No scores at all reads as neutral 0.5.
func Confidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	c := 1.0 / (1.0 + mean)
	if c < 0.1 {
		return 0.1
	}
	if c > 0.99 {
		return 0.99
	}
	return c
}
