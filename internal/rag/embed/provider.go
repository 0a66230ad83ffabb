// Package embed provides batch text embedding behind a single Provider
// interface, with a remote HTTP implementation, a deterministic stub, and an
// optional Redis read-through cache.
package embed

import "context"

// Provider turns a batch of texts into fixed-dimension vectors. Implementations
// must return one vector per input, keep Dim constant across calls, and
// tolerate empty input by returning an empty slice.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dim() int
}
