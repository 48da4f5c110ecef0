package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"patternlab/internal/experiment"
	"patternlab/internal/models"
	"patternlab/internal/trigger"
)

type SignalHandler struct {
	Engine  *trigger.Engine
	Manager *experiment.Manager
}

func (h *SignalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/signals")
	group.GET("", h.list)
	group.GET("/events", h.events)
	group.POST("/promote", h.promote)
}

type promoteRequest struct {
	ExperimentID string                  `json:"experiment_id"`
	Condition    models.TriggerCondition `json:"condition"`
}

func (h *SignalHandler) list(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "signal engine unavailable", nil)
		return
	}
	Ok(c, h.Engine.Signals(), nil)
}

func (h *SignalHandler) events(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "signal engine unavailable", nil)
		return
	}
	items := h.Engine.Events()
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, page(items, limit, offset), meta)
}

// promote activates a completed, non-losing experiment as a live signal.
// Profitability is API policy; the engine itself only requires completion.
func (h *SignalHandler) promote(c *gin.Context) {
	if h.Engine == nil || h.Manager == nil {
		Error(c, http.StatusInternalServerError, "signal engine unavailable", nil)
		return
	}
	var req promoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid promote payload", nil)
		return
	}
	req.ExperimentID = strings.TrimSpace(req.ExperimentID)
	if req.ExperimentID == "" {
		Error(c, http.StatusBadRequest, "experiment_id is required", nil)
		return
	}
	if req.Condition.Metric != models.TriggerPriceChange24h && req.Condition.Metric != models.TriggerSentimentScore {
		Error(c, http.StatusBadRequest, "condition.metric must be price_change_24h or sentiment_score", nil)
		return
	}
	if req.Condition.Operator != models.OpGreaterThan && req.Condition.Operator != models.OpLessThan {
		Error(c, http.StatusBadRequest, "condition.operator must be gt or lt", nil)
		return
	}
	if req.Condition.Source == "" {
		req.Condition.Source = models.SourceAffectedAsset
	}

	exp, ok := h.Manager.Get(req.ExperimentID)
	if !ok {
		Error(c, http.StatusNotFound, "experiment not found", nil)
		return
	}
	if exp.Status != models.StatusCompleted {
		Error(c, http.StatusConflict, "only completed experiments can be promoted", nil)
		return
	}
	if exp.Result == nil || exp.Result.PnL == nil || *exp.Result.PnL < 0 {
		Error(c, http.StatusConflict, "only experiments with a non-negative pnl can be promoted", nil)
		return
	}

	signal, err := h.Engine.Promote(c.Request.Context(), exp, req.Condition)
	if err != nil {
		switch {
		case errors.Is(err, trigger.ErrAlreadyPromoted):
			Error(c, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, trigger.ErrNotCompleted):
			Error(c, http.StatusConflict, err.Error(), nil)
		default:
			Error(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}
	Ok(c, signal, nil)
}
