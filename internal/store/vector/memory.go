package vector

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-memory fallback: a map plus a linear scan. It keeps
// the full Store contract; only persistence and scalability differ from the
// SQLite store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query []float32, k int) ([]Retrieved, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k < 1 {
		k = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Empty query: return the first k records in a stable order.
	if len(query) == 0 {
		ids := make([]string, 0, len(s.records))
		for id := range s.records {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if len(ids) > k {
			ids = ids[:k]
		}
		out := make([]Retrieved, 0, len(ids))
		for _, id := range ids {
			r := s.records[id]
			out = append(out, Retrieved{ID: r.ID, Text: r.Text, Metadata: r.Metadata, Score: 0})
		}
		return out, nil
	}

	out := make([]Retrieved, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, Retrieved{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Score:    squaredL2(query, r.Embedding),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score < out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) bool { return true }

// Len reports the number of stored records. Used by tests and health checks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Purge drops all records. Exists for the degraded-retrieval tests that
// simulate a vector store wiped out from under the graph store.
func (s *MemoryStore) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]Record)
}
