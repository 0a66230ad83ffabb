package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

// Config carries the embedding-related settings resolved by the app layer.
type Config struct {
	Provider  string // auto | remote | stub
	Host      string
	Model     string
	Dim       int
	Timeout   time.Duration
	RedisAddr string // optional read-through cache
}

// Select builds the configured provider. "auto" probes the remote host and
// falls back to the stub; an unknown name is an error so misconfiguration
// is caught at startup rather than on the first request. When a Redis
// address is configured the chosen provider is wrapped in the cache; cache
// construction failure logs and continues uncached.
func Select(log *logger.Logger, cfg Config) (Provider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	var (
		chosen Provider
		err    error
	)
	switch cfg.Provider {
	case "stub":
		chosen = NewStubProvider(cfg.Dim)
	case "remote":
		chosen, err = NewRemoteProvider(log, cfg.Host, cfg.Model, cfg.Dim, cfg.Timeout)
		if err != nil {
			return nil, err
		}
	case "auto", "":
		remote, rErr := NewRemoteProvider(log, cfg.Host, cfg.Model, cfg.Dim, cfg.Timeout)
		if rErr == nil && remote.Reachable(context.Background()) {
			chosen = remote
		} else {
			log.Warn("Remote embedder unreachable; using stub embeddings", "host", cfg.Host)
			chosen = NewStubProvider(cfg.Dim)
		}
	default:
		return nil, fmt.Errorf("unknown embed provider %q", cfg.Provider)
	}

	if cfg.RedisAddr != "" {
		cached, cErr := NewCachedProvider(log, chosen, cfg.RedisAddr, 0)
		if cErr != nil {
			log.Warn("Embed cache unavailable; continuing uncached", "error", cErr)
			return chosen, nil
		}
		return cached, nil
	}
	return chosen, nil
}
