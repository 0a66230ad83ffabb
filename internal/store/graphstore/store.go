// Package graphstore persists the document/chunk/entity graph. Nodes are
// Documents, Chunks, and Entities; edges are Document-HAS_CHUNK->Chunk and
// Chunk-ABOUT->Entity. A Neo4j implementation and an in-memory fallback
// satisfy the same contract.
package graphstore

import (
	"context"
	"regexp"

	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

// RelAbout is the only chunk-to-entity relationship the service creates.
const RelAbout = "ABOUT"

// Store is the graph contract. All upserts are commutative merges: two
// concurrent ingests touching the same entity key converge to one node.
// Entity keys are case-folded on write and on lookup.
type Store interface {
	UpsertDocument(ctx context.Context, docID, title string) error
	UpsertChunk(ctx context.Context, chunkID, docID string, ord int, text string, tokens int) error
	LinkDocChunk(ctx context.Context, docID, chunkID string) error
	UpsertEntity(ctx context.Context, entityKey, displayName string) error
	LinkChunkEntity(ctx context.Context, chunkID, entityKey, rel string) error

	// Degrees returns the ABOUT edge count per entity key; missing keys map
	// to zero.
	Degrees(ctx context.Context, entityKeys []string) (map[string]int, error)

	// ChunksForEntities returns chunks linked to any of the given entities,
	// each chunk at most once, scored 1/(1+match_count) so chunks matching
	// more entities rank higher; ties break on (doc_id, ord).
	ChunksForEntities(ctx context.Context, entityKeys []string, limit int) ([]vector.Retrieved, error)

	Ping(ctx context.Context) bool
}

var relPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// SafeRel sanitizes a relationship label; anything outside [A-Z0-9_] falls
// back to ABOUT. Relationship types are interpolated into Cypher, so this is
// the injection guard.
func SafeRel(rel string) string {
	if relPattern.MatchString(rel) {
		return rel
	}
	return RelAbout
}
