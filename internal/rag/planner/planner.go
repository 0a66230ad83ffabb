// Package planner routes a question to a retrieval mode using the entity
// graph's degree distribution.
package planner

import (
	"context"
	"fmt"

	"github.com/deskmate/deskmate-backend/internal/rag/entities"
	"github.com/deskmate/deskmate-backend/internal/store/graphstore"
)

// GraphThreshold is the minimum maximum-degree at which a question is routed
// to pure graph retrieval. Service-desk graphs are small; below this the
// graph alone is too sparse to anchor an answer.
const GraphThreshold = 3

// Mode names the retrieval strategy the retriever executes.
type Mode string

const (
	ModeVector Mode = "VECTOR"
	ModeGraph  Mode = "GRAPH"
	ModeHybrid Mode = "HYBRID"
)

// Decision is the planner's output: the mode, why it was chosen, how many
// chunks to retrieve, and which question entities have graph presence.
type Decision struct {
	Mode     Mode     `json:"mode"`
	Reasons  []string `json:"reasons"`
	TopK     int      `json:"top_k"`
	Entities []string `json:"entities"`
}

type Planner struct {
	graph graphstore.Store
	topK  int
}

func New(graph graphstore.Store, topK int) *Planner {
	if topK < 1 {
		topK = 6
	}
	return &Planner{graph: graph, topK: topK}
}

// Plan extracts entities from the question, looks up their graph degrees,
// and picks a mode: no entities or an all-zero degree map routes to VECTOR,
// a max degree at or above GraphThreshold to GRAPH, anything else to HYBRID.
// Decision.Entities keeps only positive-degree keys.
func (p *Planner) Plan(ctx context.Context, question string) (Decision, error) {
	qents := entities.Extract([]string{question})

	var degrees map[string]int
	if len(qents) > 0 {
		var err error
		degrees, err = p.graph.Degrees(ctx, qents)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Decision{}, ctxErr
			}
			// A degraded graph store reads as an empty graph; the ask
			// continues on the vector path.
			degrees = nil
		}
	}

	maxDegree := 0
	positive := make([]string, 0, len(qents))
	for _, e := range qents {
		d := degrees[e]
		if d > maxDegree {
			maxDegree = d
		}
		if d > 0 {
			positive = append(positive, e)
		}
	}

	if len(qents) == 0 || maxDegree == 0 {
		return Decision{
			Mode:     ModeVector,
			Reasons:  []string{"no graph entities"},
			TopK:     p.topK,
			Entities: []string{},
		}, nil
	}

	if maxDegree >= GraphThreshold {
		return Decision{
			Mode:     ModeGraph,
			Reasons:  []string{fmt.Sprintf("graph coverage ≥ %d", GraphThreshold)},
			TopK:     p.topK,
			Entities: positive,
		}, nil
	}

	return Decision{
		Mode:     ModeHybrid,
		Reasons:  []string{"graph is sparse"},
		TopK:     p.topK,
		Entities: positive,
	}, nil
}
