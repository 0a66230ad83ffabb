package app

import (
	"github.com/deskmate/deskmate-backend/internal/model"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/embed"
)

// initEmbedder builds the configured embedding provider; a construction
// failure (bad provider name included) degrades to the stub with a logged
// warning rather than refusing to start.
func initEmbedder(log *logger.Logger, cfg Config) embed.Provider {
	provider, err := embed.Select(log, embed.Config{
		Provider:  cfg.EmbedProvider,
		Host:      cfg.OllamaHost,
		Model:     cfg.EmbedModel,
		Dim:       cfg.EmbedDim,
		Timeout:   cfg.ModelTimeout,
		RedisAddr: cfg.RedisAddr,
	})
	if err != nil {
		log.Warn("Embedding provider init failed; using stub embeddings",
			"provider", cfg.EmbedProvider, "error", err)
		return embed.NewStubProvider(cfg.EmbedDim)
	}
	return provider
}

func modelConfig(cfg Config) model.Config {
	return model.Config{
		Provider:    cfg.ModelProvider,
		ModelName:   cfg.ModelName,
		HostedModel: cfg.HostedModel,
		Timeout:     cfg.ModelTimeout,
		OllamaHost:  cfg.OllamaHost,
		LlamaHost:   cfg.LlamaHost,
		GroqAPIKey:  cfg.GroqAPIKey,
		GroqAPIURL:  cfg.GroqAPIURL,
	}
}

// initModelProvider selects the language-model provider; failures degrade to
// the stub so the service always answers.
func initModelProvider(log *logger.Logger, cfg Config) model.Selection {
	selection, err := model.Select(log, modelConfig(cfg))
	if err != nil {
		log.Warn("Model provider init failed; using stub provider",
			"provider", cfg.ModelProvider, "error", err)
		return model.Selection{
			Provider:  model.NewStubProvider(),
			Kind:      "stub",
			ModelName: "stub",
			Reason:    "provider init failed: " + err.Error(),
		}
	}
	return selection
}
