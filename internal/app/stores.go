package app

import (
	"context"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/platform/neo4jdb"
	"github.com/deskmate/deskmate-backend/internal/store/graphstore"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

// Stores bundles the active store implementations plus what the health
// endpoint needs to report about them.
type Stores struct {
	Vectors        vector.Store
	Graph          graphstore.Store
	GraphBackend   string // neo4j | memory
	VectorBackend  string // sqlite | memory
	VectorPath     string
	GraphClient    *neo4jdb.Client
	VectorFallback bool
	GraphFallback  bool
}

// initStores builds the persistent stores and installs in-memory fallbacks
// when construction fails. Fallback activation happens here, once, before
// the service accepts traffic.
func initStores(log *logger.Logger, cfg Config) *Stores {
	s := &Stores{}

	sqlite, err := vector.NewSQLiteStore(log, cfg.VectorDir)
	if err != nil {
		log.Warn("SQLite vector store unavailable; using in-memory fallback",
			"dir", cfg.VectorDir, "error", err)
		s.Vectors = vector.NewMemoryStore()
		s.VectorBackend = "memory"
		s.VectorFallback = true
	} else {
		s.Vectors = sqlite
		s.VectorBackend = "sqlite"
		s.VectorPath = sqlite.Path()
	}

	client, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j unavailable; using in-memory graph store", "error", err)
		s.GraphFallback = true
	}
	if client != nil {
		graph, gErr := graphstore.NewNeo4jStore(log, client)
		if gErr != nil {
			log.Warn("Neo4j graph store init failed; using in-memory fallback", "error", gErr)
			_ = client.Close(context.Background())
			s.GraphFallback = true
		} else {
			s.Graph = graph
			s.GraphBackend = "neo4j"
			s.GraphClient = client
		}
	}
	if s.Graph == nil {
		// GRAPH_URI unset is a deliberate memory-backed deployment, not a
		// fallback event.
		s.Graph = graphstore.NewMemoryStore()
		s.GraphBackend = "memory"
	}

	return s
}

// Close releases external handles; in-memory stores have none.
func (s *Stores) Close(ctx context.Context) {
	if closer, ok := s.Vectors.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if s.GraphClient != nil {
		_ = s.GraphClient.Close(ctx)
	}
}
