package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

const vectorDBFile = "vectors.db"

// SQLiteStore persists records in a single SQLite file under the configured
// directory and keeps an in-memory mirror for scanning. Writes go to both;
// reads never touch the database after startup.
type SQLiteStore struct {
	log  *logger.Logger
	db   *sql.DB
	path string

	mu      sync.RWMutex
	records map[string]Record
}

func NewSQLiteStore(log *logger.Logger, dir string) (*SQLiteStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dir == "" {
		return nil, fmt.Errorf("vector dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}

	path := filepath.Join(dir, vectorDBFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}

	s := &SQLiteStore{
		log:     log.With("service", "SQLiteVectorStore"),
		db:      db,
		path:    path,
		records: make(map[string]Record),
	}
	if err := s.bootstrap(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) bootstrap() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS vectors (
	id        TEXT PRIMARY KEY,
	doc_id    TEXT NOT NULL,
	ord       INTEGER NOT NULL,
	title     TEXT NOT NULL DEFAULT '',
	text      TEXT NOT NULL,
	embedding BLOB NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("create vectors table: %w", err)
	}

	rows, err := s.db.Query(`SELECT id, doc_id, ord, title, text, embedding FROM vectors`)
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var r Record
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Metadata.DocID, &r.Metadata.Ord, &r.Metadata.Title, &r.Text, &blob); err != nil {
			return fmt.Errorf("scan vector row: %w", err)
		}
		r.Embedding = decodeEmbedding(blob)
		s.records[r.ID] = r
		loaded++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if loaded > 0 {
		s.log.Info("Vector store loaded", "path", s.path, "records", loaded)
	}
	return nil
}

// Path reports the backing file location for the health endpoint.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vector upsert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO vectors (id, doc_id, ord, title, text, embedding)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	doc_id = excluded.doc_id,
	ord = excluded.ord,
	title = excluded.title,
	text = excluded.text,
	embedding = excluded.embedding`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare vector upsert: %w", err)
	}
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Metadata.DocID, r.Metadata.Ord, r.Metadata.Title, r.Text, encodeEmbedding(r.Embedding)); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("upsert vector %q: %w", r.ID, err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vector upsert: %w", err)
	}

	s.mu.Lock()
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		s.records[r.ID] = r
	}
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int) ([]Retrieved, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k < 1 {
		k = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

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

func (s *SQLiteStore) Ping(ctx context.Context) bool {
	if s == nil || s.db == nil {
		return false
	}
	return s.db.PingContext(ctx) == nil
}

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(blob []byte) []float32 {
	if len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vec
}
