// Package model holds the language-model provider abstraction: remote HTTP
// adapters for Ollama, llama.cpp, and Groq, a deterministic stub, and the
// startup selection logic that probes reachability and falls back.
package model

import "context"

// Provider turns an assembled prompt into answer text. Implementations wrap
// failures as apierr.Provider so the responder can downgrade instead of
// surfacing a 500.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
