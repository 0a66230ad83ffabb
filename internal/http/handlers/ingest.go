package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deskmate/deskmate-backend/internal/crawl"
	"github.com/deskmate/deskmate-backend/internal/http/response"
	"github.com/deskmate/deskmate-backend/internal/ingest"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
)

// URLIngestSettings carries the crawl defaults and the feature gate.
type URLIngestSettings struct {
	Enabled       bool
	MaxDepth      int
	MaxPages      int
	MaxTotalChars int
	RateLimit     time.Duration
}

type IngestHandler struct {
	log *logger.Logger
	svc *ingest.Service
	url URLIngestSettings
}

func NewIngestHandler(log *logger.Logger, svc *ingest.Service, url URLIngestSettings) *IngestHandler {
	return &IngestHandler{
		log: log.With("handler", "Ingest"),
		svc: svc,
		url: url,
	}
}

type ingestPasteRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (h *IngestHandler) Paste(c *gin.Context) {
	var req ingestPasteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondServiceError(c, wrapBindError(err))
		return
	}
	result, err := h.svc.IngestText(c.Request.Context(), req.Title, req.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

var pdfContentTypes = map[string]struct{}{
	"application/pdf":          {},
	"application/octet-stream": {},
}

func (h *IngestHandler) PDF(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondServiceError(c, wrapBindError(err))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if _, ok := pdfContentTypes[contentType]; contentType != "" && !ok {
		response.RespondError(c, http.StatusUnsupportedMediaType, "unsupported_media_type",
			fmt.Errorf("content type %q is not a PDF", contentType))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = fileHeader.Filename
	}

	result, err := h.svc.IngestPDF(c.Request.Context(), title, data)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type ingestURLRequest struct {
	URL      string `json:"url"`
	MaxDepth *int   `json:"max_depth"`
	MaxPages *int   `json:"max_pages"`
}

func (h *IngestHandler) URL(c *gin.Context) {
	if !h.url.Enabled {
		response.RespondError(c, http.StatusForbidden, "url_ingest_disabled",
			fmt.Errorf("URL ingestion is disabled"))
		return
	}

	var req ingestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondServiceError(c, wrapBindError(err))
		return
	}

	limits := crawl.Limits{
		MaxDepth:      h.url.MaxDepth,
		MaxPages:      h.url.MaxPages,
		MaxTotalChars: h.url.MaxTotalChars,
		RateLimit:     h.url.RateLimit,
	}
	if req.MaxDepth != nil && *req.MaxDepth >= 0 {
		limits.MaxDepth = *req.MaxDepth
	}
	if req.MaxPages != nil && *req.MaxPages > 0 {
		limits.MaxPages = *req.MaxPages
	}

	result, err := h.svc.IngestURL(c.Request.Context(), req.URL, limits)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, result)
}
