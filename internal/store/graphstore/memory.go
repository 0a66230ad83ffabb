package graphstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

type memDocument struct {
	title  string
	chunks []string // insertion-ordered chunk IDs
}

type memChunk struct {
	docID    string
	ord      int
	text     string
	tokens   int
	entities map[string]struct{}
}

type memEntity struct {
	display string
	chunks  map[string]struct{}
}

// MemoryStore keeps the graph in maps and adjacency sets behind one RWMutex.
// Coarse-grained locking keeps concurrent ingests convergent on shared
// entity nodes without merge primitives.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]*memDocument
	chunks   map[string]*memChunk
	entities map[string]*memEntity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]*memDocument),
		chunks:   make(map[string]*memChunk),
		entities: make(map[string]*memEntity),
	}
}

func (s *MemoryStore) UpsertDocument(ctx context.Context, docID, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[docID]; ok {
		d.title = title
		return nil
	}
	s.docs[docID] = &memDocument{title: title}
	return nil
}

func (s *MemoryStore) UpsertChunk(ctx context.Context, chunkID, docID string, ord int, text string, tokens int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chunks[chunkID]; ok {
		c.docID, c.ord, c.text, c.tokens = docID, ord, text, tokens
		return nil
	}
	s.chunks[chunkID] = &memChunk{
		docID:    docID,
		ord:      ord,
		text:     text,
		tokens:   tokens,
		entities: make(map[string]struct{}),
	}
	return nil
}

func (s *MemoryStore) LinkDocChunk(ctx context.Context, docID, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		d = &memDocument{}
		s.docs[docID] = d
	}
	for _, existing := range d.chunks {
		if existing == chunkID {
			return nil
		}
	}
	d.chunks = append(d.chunks, chunkID)
	return nil
}

func (s *MemoryStore) UpsertEntity(ctx context.Context, entityKey, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := foldKey(entityKey)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[key]; ok {
		e.display = displayName
		return nil
	}
	s.entities[key] = &memEntity{display: displayName, chunks: make(map[string]struct{})}
	return nil
}

func (s *MemoryStore) LinkChunkEntity(ctx context.Context, chunkID, entityKey, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = SafeRel(rel) // single edge type; sanitize for contract parity
	key := foldKey(entityKey)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[key]
	if !ok {
		e = &memEntity{display: entityKey, chunks: make(map[string]struct{})}
		s.entities[key] = e
	}
	e.chunks[chunkID] = struct{}{}
	if c, ok := s.chunks[chunkID]; ok {
		c.entities[key] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Degrees(ctx context.Context, entityKeys []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(entityKeys))
	for _, raw := range entityKeys {
		key := foldKey(raw)
		if e, ok := s.entities[key]; ok {
			out[raw] = len(e.chunks)
		} else {
			out[raw] = 0
		}
	}
	return out, nil
}

func (s *MemoryStore) ChunksForEntities(ctx context.Context, entityKeys []string, limit int) ([]vector.Retrieved, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make(map[string]int)
	for _, raw := range entityKeys {
		e, ok := s.entities[foldKey(raw)]
		if !ok {
			continue
		}
		for chunkID := range e.chunks {
			matches[chunkID]++
		}
	}

	out := make([]vector.Retrieved, 0, len(matches))
	for chunkID, count := range matches {
		c, ok := s.chunks[chunkID]
		if !ok {
			continue
		}
		title := ""
		if d, ok := s.docs[c.docID]; ok {
			title = d.title
		}
		out = append(out, vector.Retrieved{
			ID:   chunkID,
			Text: c.text,
			Metadata: vector.Metadata{
				DocID: c.docID,
				Ord:   c.ord,
				Title: title,
			},
			Score: 1.0 / (1.0 + float64(count)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		if out[i].Metadata.DocID != out[j].Metadata.DocID {
			return out[i].Metadata.DocID < out[j].Metadata.DocID
		}
		return out[i].Metadata.Ord < out[j].Metadata.Ord
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) bool { return true }

func foldKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
