package app

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, warnings := LoadConfig()
	if len(warnings) != 0 {
		t.Fatalf("defaults must not warn, got %v", warnings)
	}
	if cfg.Port != "8080" {
		t.Fatalf("want=8080 got=%q", cfg.Port)
	}
	if cfg.TopK != 6 || cfg.ChunkTok != 512 || cfg.Overlap != 64 {
		t.Fatalf("unexpected retrieval defaults %+v", cfg)
	}
	if cfg.ModelProvider != "auto" || cfg.EmbedProvider != "auto" {
		t.Fatalf("unexpected provider defaults %+v", cfg)
	}
	if cfg.AllowURLIngest {
		t.Fatalf("URL ingest must default off")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigClamps(t *testing.T) {
	t.Setenv("TOP_K", "-3")
	t.Setenv("CHUNK_TOKENS", "0")
	t.Setenv("CHUNK_OVERLAP", "999")
	t.Setenv("URL_MAX_PAGES", "0")
	t.Setenv("URL_MAX_TOTAL_CHARS", "5")
	t.Setenv("URL_RATE_LIMIT_MS", "-10")

	cfg, warnings := LoadConfig()
	if len(warnings) == 0 {
		t.Fatalf("want clamp warnings for out-of-range values")
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "TOP_K=-3") {
			found = true
		}
	}
	if !found {
		t.Fatalf("want TOP_K clamp reported, got %v", warnings)
	}
	if cfg.TopK != 1 {
		t.Fatalf("want top_k clamped to 1 got=%d", cfg.TopK)
	}
	if cfg.ChunkTok != 1 {
		t.Fatalf("want chunk tokens clamped to 1 got=%d", cfg.ChunkTok)
	}
	if cfg.Overlap >= cfg.ChunkTok {
		t.Fatalf("overlap %d must stay below chunk size %d", cfg.Overlap, cfg.ChunkTok)
	}
	if cfg.URLMaxPages != 1 || cfg.URLMaxChars != 1000 {
		t.Fatalf("unexpected url clamps %+v", cfg)
	}
	if cfg.URLRateLimit != 0 {
		t.Fatalf("want rate limit clamped to 0 got=%v", cfg.URLRateLimit)
	}
}

func TestLoadConfigProviderLowercased(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "OLLAMA")
	t.Setenv("MODEL_TIMEOUT_SEC", "7")

	cfg, _ := LoadConfig()
	if cfg.ModelProvider != "ollama" {
		t.Fatalf("want lowercased provider got=%q", cfg.ModelProvider)
	}
	if cfg.ModelTimeout != 7*time.Second {
		t.Fatalf("want=7s got=%v", cfg.ModelTimeout)
	}
}
