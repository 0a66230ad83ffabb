package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/deskmate/deskmate-backend/internal/platform/envutil"
)

// Config is the full environment-derived configuration, normalized and
// clamped at load time so downstream components can trust the values.
type Config struct {
	Port     string
	LogMode  string
	AppName  string
	TopK     int
	ChunkTok int
	Overlap  int

	ModelProvider string
	ModelName     string
	HostedModel   string
	ModelTimeout  time.Duration
	OllamaHost    string
	LlamaHost     string
	GroqAPIKey    string
	GroqAPIURL    string

	EmbedProvider string
	EmbedModel    string
	EmbedDim      int
	RedisAddr     string

	VectorDir string

	AllowedOrigins []string

	AllowURLIngest bool
	URLMaxDepth    int
	URLMaxPages    int
	URLMaxChars    int
	URLRateLimit   time.Duration
	TracingEnabled bool
}

// LoadConfig reads and normalizes the environment. Out-of-range values are
// clamped rather than fatal; each clamp is reported in the returned warnings
// so main can log the misconfiguration once the logger exists.
func LoadConfig() (Config, []string) {
	var warnings []string
	clamp := func(key string, got, used int) {
		warnings = append(warnings, fmt.Sprintf("%s=%d is out of range; using %d", key, got, used))
	}

	topK := envutil.Int("TOP_K", 6)
	if topK < 1 {
		clamp("TOP_K", topK, 1)
		topK = 1
	}
	chunkTok := envutil.Int("CHUNK_TOKENS", 512)
	if chunkTok < 1 {
		clamp("CHUNK_TOKENS", chunkTok, 1)
		chunkTok = 1
	}
	overlap := envutil.Int("CHUNK_OVERLAP", 64)
	if overlap < 0 {
		clamp("CHUNK_OVERLAP", overlap, 0)
		overlap = 0
	}
	if overlap >= chunkTok {
		clamp("CHUNK_OVERLAP", overlap, chunkTok/2)
		overlap = chunkTok / 2
	}

	urlDepth := envutil.Int("URL_MAX_DEPTH", 1)
	if urlDepth < 0 {
		clamp("URL_MAX_DEPTH", urlDepth, 0)
		urlDepth = 0
	}
	urlPages := envutil.Int("URL_MAX_PAGES", 5)
	if urlPages < 1 {
		clamp("URL_MAX_PAGES", urlPages, 1)
		urlPages = 1
	}
	urlChars := envutil.Int("URL_MAX_TOTAL_CHARS", 20000)
	if urlChars < 1000 {
		clamp("URL_MAX_TOTAL_CHARS", urlChars, 1000)
		urlChars = 1000
	}
	urlRateMS := envutil.Int("URL_RATE_LIMIT_MS", 1000)
	if urlRateMS < 0 {
		clamp("URL_RATE_LIMIT_MS", urlRateMS, 0)
		urlRateMS = 0
	}

	return Config{
		Port:     envutil.String("PORT", "8080"),
		LogMode:  envutil.String("LOG_MODE", "development"),
		AppName:  envutil.String("APP_NAME", "deskmate-backend"),
		TopK:     topK,
		ChunkTok: chunkTok,
		Overlap:  overlap,

		ModelProvider: strings.ToLower(envutil.String("MODEL_PROVIDER", "auto")),
		ModelName:     envutil.String("MODEL_NAME", "phi3:mini"),
		HostedModel:   envutil.String("HOSTED_MODEL_NAME", "llama-3.1-8b-instant"),
		ModelTimeout:  time.Duration(envutil.Int("MODEL_TIMEOUT_SEC", 20)) * time.Second,
		OllamaHost:    envutil.String("OLLAMA_HOST", "http://localhost:11434"),
		LlamaHost:     envutil.String("LLAMACPP_HOST", "http://localhost:8080"),
		GroqAPIKey:    envutil.String("GROQ_API_KEY", ""),
		GroqAPIURL:    envutil.String("GROQ_API_URL", ""),

		EmbedProvider: strings.ToLower(envutil.String("EMBED_PROVIDER", "auto")),
		EmbedModel:    envutil.String("EMBED_MODEL_NAME", "nomic-embed-text"),
		EmbedDim:      envutil.Int("EMBED_DIM", 384),
		RedisAddr:     envutil.String("REDIS_ADDR", ""),

		VectorDir: envutil.String("VECTOR_DIR", "store/vectors"),

		AllowedOrigins: envutil.CSV("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		AllowURLIngest: envutil.Bool("ALLOW_URL_INGEST", false),
		URLMaxDepth:    urlDepth,
		URLMaxPages:    urlPages,
		URLMaxChars:    urlChars,
		URLRateLimit:   time.Duration(urlRateMS) * time.Millisecond,
		TracingEnabled: envutil.Bool("OTEL_ENABLED", false),
	}, warnings
}
