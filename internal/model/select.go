package model

import (
	"context"
	"fmt"
	"time"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

// Config carries the model-related settings resolved by the app layer.
type Config struct {
	Provider    string // auto | ollama | llamacpp | groq | stub
	ModelName   string // local model name
	HostedModel string // hosted model name
	Timeout     time.Duration
	OllamaHost  string
	LlamaHost   string
	GroqAPIKey  string
	GroqAPIURL  string
}

// Selection is the outcome of provider selection: the active provider plus
// the context the health endpoint reports.
type Selection struct {
	Provider  Provider
	Kind      string // hosted | local | stub
	ModelName string
	Reason    string
}

type reachableProvider interface {
	Provider
	Reachable(ctx context.Context) bool
}

// Select builds the configured provider. Explicit names construct directly
// (a construction failure is a startup error); "auto" probes hosted then
// local backends in order and falls back to the stub with a recorded reason.
func Select(log *logger.Logger, cfg Config) (Selection, error) {
	if log == nil {
		return Selection{}, fmt.Errorf("logger required")
	}

	switch cfg.Provider {
	case "stub", "":
		return stubSelection("stub provider configured"), nil
	case "ollama":
		p, err := NewOllamaProvider(log, cfg.OllamaHost, cfg.ModelName, cfg.Timeout)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Provider: p, Kind: "local", ModelName: cfg.ModelName, Reason: "ollama provider configured"}, nil
	case "llamacpp":
		p, err := NewLlamaCppProvider(log, cfg.LlamaHost, cfg.ModelName, cfg.Timeout)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Provider: p, Kind: "local", ModelName: cfg.ModelName, Reason: "llamacpp provider configured"}, nil
	case "groq":
		p, err := NewGroqProvider(log, cfg.GroqAPIKey, cfg.GroqAPIURL, cfg.HostedModel, cfg.Timeout)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Provider: p, Kind: "hosted", ModelName: cfg.HostedModel, Reason: "groq provider configured"}, nil
	case "auto":
		return autoSelect(log, cfg), nil
	default:
		return Selection{}, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// autoSelect probes hosted first, then local backends in order. Probe
// failures are expected offline, so they log at debug and continue.
func autoSelect(log *logger.Logger, cfg Config) Selection {
	ctx := context.Background()

	if cfg.GroqAPIKey != "" {
		if p, err := NewGroqProvider(log, cfg.GroqAPIKey, cfg.GroqAPIURL, cfg.HostedModel, cfg.Timeout); err == nil {
			if p.Reachable(ctx) {
				return Selection{Provider: p, Kind: "hosted", ModelName: cfg.HostedModel, Reason: "hosted groq reachable"}
			}
			log.Debug("Groq unreachable during auto-select")
		}
	}

	candidates := []struct {
		build func() (reachableProvider, error)
	}{
		{func() (reachableProvider, error) {
			return NewOllamaProvider(log, cfg.OllamaHost, cfg.ModelName, cfg.Timeout)
		}},
		{func() (reachableProvider, error) {
			return NewLlamaCppProvider(log, cfg.LlamaHost, cfg.ModelName, cfg.Timeout)
		}},
	}
	for _, c := range candidates {
		p, err := c.build()
		if err != nil {
			continue
		}
		if p.Reachable(ctx) {
			return Selection{Provider: p, Kind: "local", ModelName: cfg.ModelName, Reason: p.Name() + " reachable"}
		}
		log.Debug("Provider unreachable during auto-select", "provider", p.Name())
	}

	log.Warn("No model backend reachable; using stub provider")
	return stubSelection("no reachable model backend; stub fallback")
}

func stubSelection(reason string) Selection {
	return Selection{
		Provider:  NewStubProvider(),
		Kind:      "stub",
		ModelName: "stub",
		Reason:    reason,
	}
}
