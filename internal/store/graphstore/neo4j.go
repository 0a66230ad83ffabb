package graphstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/platform/neo4jdb"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

// Neo4jStore persists the graph through MERGE-based Cypher so upserts are
// commutative across concurrent ingests.
type Neo4jStore struct {
	log    *logger.Logger
	client *neo4jdb.Client
}

func NewNeo4jStore(log *logger.Logger, client *neo4jdb.Client) (*Neo4jStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("neo4j client required")
	}
	s := &Neo4jStore{
		log:    log.With("service", "Neo4jGraphStore"),
		client: client,
	}
	if err := s.ensureConstraints(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) ensureConstraints(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT entity_key_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.key IS UNIQUE`,
	}
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, stmt := range statements {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			// Restricted users may not hold schema privileges.
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
	return nil
}

func (s *Neo4jStore) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.client.Database,
	})
}

func (s *Neo4jStore) write(ctx context.Context, cypher string, params map[string]any) error {
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

func (s *Neo4jStore) UpsertDocument(ctx context.Context, docID, title string) error {
	return s.write(ctx, `
MERGE (d:Document {id: $doc_id})
SET d.title = $title, d.updated_at = timestamp()
`, map[string]any{"doc_id": docID, "title": title})
}

func (s *Neo4jStore) UpsertChunk(ctx context.Context, chunkID, docID string, ord int, text string, tokens int) error {
	return s.write(ctx, `
MERGE (c:Chunk {id: $chunk_id})
SET c.doc_id = $doc_id, c.ord = $ord, c.text = $text, c.tokens = $tokens, c.updated_at = timestamp()
`, map[string]any{
		"chunk_id": chunkID,
		"doc_id":   docID,
		"ord":      int64(ord),
		"text":     text,
		"tokens":   int64(tokens),
	})
}

func (s *Neo4jStore) LinkDocChunk(ctx context.Context, docID, chunkID string) error {
	return s.write(ctx, `
MATCH (d:Document {id: $doc_id}), (c:Chunk {id: $chunk_id})
MERGE (d)-[:HAS_CHUNK]->(c)
`, map[string]any{"doc_id": docID, "chunk_id": chunkID})
}

func (s *Neo4jStore) UpsertEntity(ctx context.Context, entityKey, displayName string) error {
	key := foldKey(entityKey)
	if key == "" {
		return nil
	}
	return s.write(ctx, `
MERGE (e:Entity {key: $key})
SET e.name = $name, e.updated_at = timestamp()
`, map[string]any{"key": key, "name": displayName})
}

func (s *Neo4jStore) LinkChunkEntity(ctx context.Context, chunkID, entityKey, rel string) error {
	key := foldKey(entityKey)
	if key == "" {
		return nil
	}
	relType := SafeRel(rel)
	return s.write(ctx, fmt.Sprintf(`
MATCH (c:Chunk {id: $chunk_id}), (e:Entity {key: $key})
MERGE (c)-[:%s]->(e)
`, relType), map[string]any{"chunk_id": chunkID, "key": key})
}

func (s *Neo4jStore) Degrees(ctx context.Context, entityKeys []string) (map[string]int, error) {
	out := make(map[string]int, len(entityKeys))
	if len(entityKeys) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(entityKeys))
	for _, raw := range entityKeys {
		keys = append(keys, foldKey(raw))
	}

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	found, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (e:Entity) WHERE e.key IN $keys
OPTIONAL MATCH (e)<-[:ABOUT]-(c:Chunk)
RETURN e.key AS key, count(c) AS degree
`, map[string]any{"keys": keys})
		if err != nil {
			return nil, err
		}
		degrees := make(map[string]int)
		for res.Next(ctx) {
			rec := res.Record()
			key, _ := rec.Get("key")
			degree, _ := rec.Get("degree")
			ks, _ := key.(string)
			dn, _ := degree.(int64)
			degrees[ks] = int(dn)
		}
		return degrees, res.Err()
	})
	if err != nil {
		return nil, err
	}

	degrees := found.(map[string]int)
	for _, raw := range entityKeys {
		out[raw] = degrees[foldKey(raw)]
	}
	return out, nil
}

func (s *Neo4jStore) ChunksForEntities(ctx context.Context, entityKeys []string, limit int) ([]vector.Retrieved, error) {
	if len(entityKeys) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	keys := make([]string, 0, len(entityKeys))
	for _, raw := range entityKeys {
		keys = append(keys, foldKey(raw))
	}

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (e:Entity) WHERE e.key IN $keys
MATCH (e)<-[:ABOUT]-(c:Chunk)<-[:HAS_CHUNK]-(d:Document)
WITH c, d, count(DISTINCT e) AS matches
RETURN c.id AS chunk_id, c.text AS text, c.ord AS ord, d.id AS doc_id, d.title AS title, matches
ORDER BY matches DESC, d.id ASC, c.ord ASC
LIMIT $limit
`, map[string]any{"keys": keys, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		var out []vector.Retrieved
		for res.Next(ctx) {
			rec := res.Record()
			out = append(out, vector.Retrieved{
				ID:   stringValue(rec, "chunk_id"),
				Text: stringValue(rec, "text"),
				Metadata: vector.Metadata{
					DocID: stringValue(rec, "doc_id"),
					Ord:   intValue(rec, "ord"),
					Title: stringValue(rec, "title"),
				},
				Score: 1.0 / (1.0 + float64(intValue(rec, "matches"))),
			})
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return rows.([]vector.Retrieved), nil
}

func (s *Neo4jStore) Ping(ctx context.Context) bool {
	if s == nil || s.client == nil || s.client.Driver == nil {
		return false
	}
	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	res, err := session.Run(ctx, `RETURN 1 AS ok`, nil)
	if err != nil {
		return false
	}
	_, err = res.Consume(ctx)
	return err == nil
}

func stringValue(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func intValue(rec *neo4j.Record, key string) int {
	v, _ := rec.Get(key)
	n, _ := v.(int64)
	return int(n)
}
