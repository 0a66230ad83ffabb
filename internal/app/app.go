// Package app owns process state: configuration, store and provider wiring
// with fallback activation, health aggregation, and the HTTP server
// lifecycle.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deskmate/deskmate-backend/internal/crawl"
	httpapi "github.com/deskmate/deskmate-backend/internal/http"
	httpH "github.com/deskmate/deskmate-backend/internal/http/handlers"
	"github.com/deskmate/deskmate-backend/internal/ingest"
	"github.com/deskmate/deskmate-backend/internal/model"
	"github.com/deskmate/deskmate-backend/internal/observability"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/embed"
	"github.com/deskmate/deskmate-backend/internal/rag/planner"
	"github.com/deskmate/deskmate-backend/internal/rag/retrieve"
)

type App struct {
	Log       *logger.Logger
	Config    Config
	Stores    *Stores
	Embedder  embed.Provider
	Selection model.Selection

	Ingest    *ingest.Service
	Planner   *planner.Planner
	Retriever *retrieve.Retriever
	Router    http.Handler

	server       *http.Server
	otelShutdown func(context.Context) error
}

// Option tweaks construction; used by tests and by main for the PDF
// extractor.
type Option func(*App)

// WithPDFExtractor installs the PDF byte-to-text function on the ingest
// service.
func WithPDFExtractor(fn ingest.PDFToText) Option {
	return func(a *App) {
		a.Ingest.WithPDFExtractor(fn)
	}
}

// New wires the whole service: config, logger-tagged components, stores with
// fallbacks, providers with fallbacks, and the router. It never fails on an
// unreachable dependency; only a nil logger is fatal to construction.
func New(log *logger.Logger, cfg Config, opts ...Option) (*App, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}

	a := &App{
		Log:    log,
		Config: cfg,
	}

	a.otelShutdown = observability.InitOTel(context.Background(), log, cfg.AppName)

	a.Stores = initStores(log, cfg)
	a.Embedder = initEmbedder(log, cfg)
	a.Selection = initModelProvider(log, cfg)

	a.Ingest = ingest.NewService(log, a.Embedder, a.Stores.Vectors, a.Stores.Graph, cfg.ChunkTok, cfg.Overlap)
	if cfg.AllowURLIngest {
		a.Ingest.WithCrawler(crawl.New(log))
	}
	a.Planner = planner.New(a.Stores.Graph, cfg.TopK)
	a.Retriever = retrieve.New(log, a.Stores.Vectors, a.Stores.Graph, a.Embedder)

	for _, opt := range opts {
		opt(a)
	}

	a.Router = httpapi.NewRouter(httpapi.RouterConfig{
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
		TracingEnabled: cfg.TracingEnabled,
		IngestHandler: httpH.NewIngestHandler(log, a.Ingest, httpH.URLIngestSettings{
			Enabled:       cfg.AllowURLIngest,
			MaxDepth:      cfg.URLMaxDepth,
			MaxPages:      cfg.URLMaxPages,
			MaxTotalChars: cfg.URLMaxChars,
			RateLimit:     cfg.URLRateLimit,
		}),
		AskHandler:    httpH.NewAskHandler(log, a.Planner, a.Retriever, a.Selection, modelConfig(cfg)),
		HealthHandler: httpH.NewHealthHandler(a.Health),
	})

	return a, nil
}

// Health probes every dependency concurrently and reports reachability, the
// active backends, and configured vs active model names.
func (a *App) Health(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		vectorOK, graphOK bool
		ollamaOK, llamaOK bool
		hostedOK, embedOK bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { vectorOK = a.Stores.Vectors.Ping(gctx); return nil })
	g.Go(func() error { graphOK = a.Stores.Graph.Ping(gctx); return nil })
	g.Go(func() error { ollamaOK = a.probeOllama(gctx); return nil })
	g.Go(func() error { llamaOK = a.probeLlamaCpp(gctx); return nil })
	g.Go(func() error { hostedOK = a.probeHosted(gctx); return nil })
	g.Go(func() error { embedOK = a.probeEmbedder(gctx); return nil })
	_ = g.Wait()

	vectorPathExists := false
	if a.Stores.VectorPath != "" {
		_, statErr := os.Stat(a.Stores.VectorPath)
		vectorPathExists = statErr == nil
	}

	return map[string]any{
		"status":                   "ok",
		"provider":                 a.Selection.Provider.Name(),
		"provider_kind":            a.Selection.Kind,
		"model_name":               a.Selection.ModelName,
		"configured_provider":      a.Config.ModelProvider,
		"operator_message":         a.Selection.Reason,
		"hosted_model_name":        a.Config.HostedModel,
		"hosted_reachable":         hostedOK,
		"ollama_reachable":         ollamaOK,
		"llamacpp_reachable":       llamaOK,
		"embed_provider":           a.Embedder.Name(),
		"embed_reachable":          embedOK,
		"graph_backend":            a.Stores.GraphBackend,
		"graph_reachable":          graphOK,
		"vector_backend":           a.Stores.VectorBackend,
		"vector_reachable":         vectorOK,
		"vector_store_path":        a.Stores.VectorPath,
		"vector_store_path_exists": vectorPathExists,
	}
}

func (a *App) probeOllama(ctx context.Context) bool {
	p, err := model.NewOllamaProvider(a.Log, a.Config.OllamaHost, a.Config.ModelName, a.Config.ModelTimeout)
	if err != nil {
		return false
	}
	return p.Reachable(ctx)
}

func (a *App) probeLlamaCpp(ctx context.Context) bool {
	p, err := model.NewLlamaCppProvider(a.Log, a.Config.LlamaHost, a.Config.ModelName, a.Config.ModelTimeout)
	if err != nil {
		return false
	}
	return p.Reachable(ctx)
}

func (a *App) probeHosted(ctx context.Context) bool {
	if a.Config.GroqAPIKey == "" {
		return false
	}
	p, err := model.NewGroqProvider(a.Log, a.Config.GroqAPIKey, a.Config.GroqAPIURL, a.Config.HostedModel, a.Config.ModelTimeout)
	if err != nil {
		return false
	}
	return p.Reachable(ctx)
}

func (a *App) probeEmbedder(ctx context.Context) bool {
	type reachable interface {
		Reachable(ctx context.Context) bool
	}
	if r, ok := a.Embedder.(reachable); ok {
		return r.Reachable(ctx)
	}
	// The stub (and the cache wrapping it) is always available.
	return true
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.server = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "port", a.Config.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}

// Close releases store handles and flushes tracing.
func (a *App) Close(ctx context.Context) {
	a.Stores.Close(ctx)
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
}
