package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/deskmate/deskmate-backend/internal/http/response"
	"github.com/deskmate/deskmate-backend/internal/model"
	"github.com/deskmate/deskmate-backend/internal/platform/apierr"
	"github.com/deskmate/deskmate-backend/internal/platform/logger"
	"github.com/deskmate/deskmate-backend/internal/rag/answer"
	"github.com/deskmate/deskmate-backend/internal/rag/planner"
	"github.com/deskmate/deskmate-backend/internal/rag/retrieve"
)

type AskHandler struct {
	log       *logger.Logger
	planner   *planner.Planner
	retriever *retrieve.Retriever
	selection model.Selection
	modelCfg  model.Config
}

func NewAskHandler(log *logger.Logger, p *planner.Planner, r *retrieve.Retriever, selection model.Selection, modelCfg model.Config) *AskHandler {
	return &AskHandler{
		log:       log.With("handler", "Ask"),
		planner:   p,
		retriever: r,
		selection: selection,
		modelCfg:  modelCfg,
	}
}

type askRequest struct {
	Question         string `json:"question"`
	TopK             *int   `json:"top_k"`
	ProviderOverride string `json:"provider_override"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondServiceError(c, wrapBindError(err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondServiceError(c, apierr.BadInput("empty_question", fmt.Errorf("question must not be empty")))
		return
	}

	ctx := c.Request.Context()

	decision, err := h.planner.Plan(ctx, req.Question)
	if err != nil {
		respondServiceError(c, apierr.Store("planner_degrees_failed", err))
		return
	}
	if req.TopK != nil && *req.TopK > 0 {
		decision.TopK = *req.TopK
	}

	chunks, fallbacks, err := h.retriever.Retrieve(ctx, req.Question, decision)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	decision.Reasons = append(decision.Reasons, fallbacks...)

	provider := h.resolveProvider(req.ProviderOverride)
	responder := answer.New(h.log, provider)
	response.RespondOK(c, responder.Answer(ctx, req.Question, decision, chunks))
}

// resolveProvider honors a per-request override, falling back to the
// configured provider when the override cannot be constructed.
func (h *AskHandler) resolveProvider(override string) model.Provider {
	override = strings.ToLower(strings.TrimSpace(override))
	if override == "" || override == h.selection.Provider.Name() {
		return h.selection.Provider
	}

	cfg := h.modelCfg
	cfg.Provider = override
	sel, err := model.Select(h.log, cfg)
	if err != nil {
		h.log.Warn("Provider override rejected; using configured provider",
			"override", override, "error", err)
		return h.selection.Provider
	}
	return sel.Provider
}
