package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"patternlab/internal/experiment"
	"patternlab/internal/models"
)

type ExperimentHandler struct {
	Manager *experiment.Manager
	// Quotes supplies the live snapshot used to dispatch approvals and resumes.
	Quotes func() models.AssetSnapshot
}

func (h *ExperimentHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/experiments")
	group.GET("", h.list)
	group.POST("", h.approve)
	group.GET("/logs", h.logs)
	group.POST("/:id/recycle", h.recycle)
	group.POST("/:id/resume", h.resume)
}

func (h *ExperimentHandler) snapshot() models.AssetSnapshot {
	if h.Quotes == nil {
		return models.AssetSnapshot{}
	}
	return h.Quotes()
}

func (h *ExperimentHandler) list(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "experiment manager unavailable", nil)
		return
	}
	items := h.Manager.Experiments()
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, page(items, limit, offset), meta)
}

func (h *ExperimentHandler) approve(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "experiment manager unavailable", nil)
		return
	}
	var lp models.LearningPattern
	if err := c.ShouldBindJSON(&lp); err != nil {
		Error(c, http.StatusBadRequest, "invalid pattern payload", nil)
		return
	}
	lp.ID = strings.TrimSpace(lp.ID)
	if lp.ID == "" || strings.TrimSpace(lp.AffectedAsset) == "" {
		Error(c, http.StatusBadRequest, "id and affected_asset are required", nil)
		return
	}
	if lp.TradeDirection != models.TradeLong && lp.TradeDirection != models.TradeShort {
		Error(c, http.StatusBadRequest, "trade_direction must be long or short", nil)
		return
	}

	if err := h.Manager.Approve(c.Request.Context(), lp, h.snapshot()); err != nil {
		if errors.Is(err, experiment.ErrAlreadyApproved) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	exp, _ := h.Manager.Get(lp.ID)
	Ok(c, exp, nil)
}

func (h *ExperimentHandler) recycle(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "experiment manager unavailable", nil)
		return
	}
	id := c.Param("id")
	if err := h.Manager.Recycle(c.Request.Context(), id); err != nil {
		if errors.Is(err, experiment.ErrNotFound) {
			Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"recycled": id}, nil)
}

func (h *ExperimentHandler) resume(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "experiment manager unavailable", nil)
		return
	}
	id := c.Param("id")
	if err := h.Manager.Resume(c.Request.Context(), id, h.snapshot()); err != nil {
		switch {
		case errors.Is(err, experiment.ErrNotFound):
			Error(c, http.StatusNotFound, err.Error(), nil)
		case errors.Is(err, experiment.ErrNotCompleted):
			Error(c, http.StatusConflict, err.Error(), nil)
		default:
			Error(c, http.StatusInternalServerError, err.Error(), nil)
		}
		return
	}
	exp, _ := h.Manager.Get(id)
	Ok(c, exp, nil)
}

func (h *ExperimentHandler) logs(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "experiment manager unavailable", nil)
		return
	}
	items := h.Manager.Logs()
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, page(items, limit, offset), meta)
}
