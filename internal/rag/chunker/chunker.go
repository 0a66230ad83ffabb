// Package chunker splits raw document text into fixed-size token windows
// with overlap. Output is deterministic for fixed inputs, which the ingest
// pipeline relies on for idempotent re-ingest.
package chunker

import (
	"strings"
)

const (
	tokenApproxChars    = 4
	DefaultChunkTokens  = 512
	DefaultChunkOverlap = 64
)

// Chunk is one window of a document. ChunkID and metadata are assigned by
// the ingest coordinator once the document id is known.
type Chunk struct {
	Ord    int
	Text   string
	Tokens int
}

// ApproxTokens returns a deterministic token-count approximation:
// max(word count, len/4). Language-agnostic and stable across runs.
func ApproxTokens(text string) int {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return 0
	}
	wordCount := len(strings.Fields(stripped))
	charEstimate := len(stripped) / tokenApproxChars
	if charEstimate < 1 {
		charEstimate = 1
	}
	if wordCount > charEstimate {
		return wordCount
	}
	return charEstimate
}

// Split tokenizes on whitespace and emits successive windows of chunkTokens
// tokens; each window after the first starts overlap tokens before the
// previous window's end. Tokens are rejoined with single spaces.
func Split(text string, chunkTokens, overlap int) []Chunk {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkTokens {
		overlap = chunkTokens / 2
	}

	var chunks []Chunk
	start := 0
	ord := 0
	for start < len(tokens) {
		end := start + chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := strings.Join(tokens[start:end], " ")
		chunks = append(chunks, Chunk{
			Ord:    ord,
			Text:   window,
			Tokens: ApproxTokens(window),
		})
		if end == len(tokens) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
		ord++
	}
	return chunks
}
