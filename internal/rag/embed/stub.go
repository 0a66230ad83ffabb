package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

const DefaultStubDim = 384

// StubProvider produces hash-seeded pseudo-random unit vectors. The same
// text always embeds to the same vector, which makes retrieval round-trips
// testable offline.
type StubProvider struct {
	dim int
}

func NewStubProvider(dim int) *StubProvider {
	if dim <= 0 {
		dim = DefaultStubDim
	}
	return &StubProvider{dim: dim}
}

func (p *StubProvider) Name() string { return "stub" }
func (p *StubProvider) Dim() int     { return p.dim }

func (p *StubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, p.vectorFor(text))
	}
	return out, nil
}

func (p *StubProvider) vectorFor(text string) []float32 {
	digest := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(digest[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float32, p.dim)
	var sumSquares float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		sumSquares += v * v
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
