// Package retrieve executes a planner decision against the vector and graph
// stores, applying the degraded-mode fallbacks.
package retrieve

import (
	"context"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/embed"
	"github.com/deskmate/deskmate-backend/internal/rag/planner"
	"github.com/deskmate/deskmate-backend/internal/store/graphstore"
	"github.com/deskmate/deskmate-backend/internal/store/vector"
)

// Retriever is read-only: it never writes to either store. Store or embedder
// failures inside one mode degrade to the fallback path instead of failing
// the ask.
type Retriever struct {
	log      *logger.Logger
	vectors  vector.Store
	graph    graphstore.Store
	embedder embed.Provider
}

func New(log *logger.Logger, vectors vector.Store, graph graphstore.Store, embedder embed.Provider) *Retriever {
	return &Retriever{
		log:      log.With("service", "Retriever"),
		vectors:  vectors,
		graph:    graph,
		embedder: embedder,
	}
}

// Retrieve runs the decision's mode. The second return value lists fallback
// reasons recorded along the way (graph empty, intersection empty, store
// degraded); empty when the primary path served the results.
func (r *Retriever) Retrieve(ctx context.Context, question string, d planner.Decision) ([]vector.Retrieved, []string, error) {
	topK := d.TopK
	if topK < 1 {
		topK = 6
	}

	switch d.Mode {
	case planner.ModeGraph:
		g := r.graphSearch(ctx, d.Entities, topK)
		if len(g) > 0 {
			return g, nil, nil
		}
		return r.vectorSearch(ctx, question, topK), []string{"graph returned no chunks; vector fallback"}, nil

	case planner.ModeHybrid:
		g := r.graphSearch(ctx, d.Entities, topK)
		if len(g) == 0 {
			return r.vectorSearch(ctx, question, topK), []string{"graph returned no chunks; vector fallback"}, nil
		}
		v := r.vectorSearch(ctx, question, topK)
		allowed := make(map[string]struct{}, len(g))
		for _, item := range g {
			allowed[item.ID] = struct{}{}
		}
		filtered := make([]vector.Retrieved, 0, len(v))
		for _, item := range v {
			if _, ok := allowed[item.ID]; ok {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) > 0 {
			return filtered, nil, nil
		}
		if len(v) > 0 {
			return v, []string{"empty graph/vector intersection; vectors unfiltered"}, nil
		}
		// Vector side is empty too (store wiped or degraded); the graph
		// chunks are the only usable evidence.
		return g, []string{"vector store empty; graph chunks served"}, nil

	default:
		return r.vectorSearch(ctx, question, topK), nil, nil
	}
}

func (r *Retriever) vectorSearch(ctx context.Context, question string, topK int) []vector.Retrieved {
	vecs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil || len(vecs) == 0 {
		r.log.Warn("Question embedding failed; treating vector mode as empty", "error", err)
		return nil
	}
	out, err := r.vectors.Search(ctx, vecs[0], topK)
	if err != nil {
		r.log.Warn("Vector search failed; treating vector mode as empty", "error", err)
		return nil
	}
	return out
}

func (r *Retriever) graphSearch(ctx context.Context, entityKeys []string, topK int) []vector.Retrieved {
	if len(entityKeys) == 0 {
		return nil
	}
	out, err := r.graph.ChunksForEntities(ctx, entityKeys, topK)
	if err != nil {
		r.log.Warn("Graph retrieval failed; treating graph mode as empty", "error", err)
		return nil
	}
	return out
}
