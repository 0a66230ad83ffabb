// Package http wires the gin router: routes, CORS, body limits, request
// logging, and optional tracing middleware.
package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/deskmate/deskmate-backend/internal/http/handlers"
	httpMW "github.com/deskmate/deskmate-backend/internal/http/middleware"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

const (
	maxAskBytes    = 1 << 20
	maxIngestBytes = 5 << 20
)

type RouterConfig struct {
	Log            *logger.Logger
	AllowedOrigins []string
	TracingEnabled bool

	IngestHandler *httpH.IngestHandler
	AskHandler    *httpH.AskHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware("deskmate-backend"))
	}

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Health)
	}

	if cfg.IngestHandler != nil {
		ingest := r.Group("/ingest", httpMW.MaxBody(maxIngestBytes))
		{
			ingest.POST("/paste", cfg.IngestHandler.Paste)
			ingest.POST("/pdf", cfg.IngestHandler.PDF)
			ingest.POST("/url", cfg.IngestHandler.URL)
		}
	}

	if cfg.AskHandler != nil {
		r.POST("/ask", httpMW.MaxBody(maxAskBytes), cfg.AskHandler.Ask)
	}

	return r
}
