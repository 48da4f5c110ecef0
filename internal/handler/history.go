package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"patternlab/internal/history"
	"patternlab/internal/models"
)

type HistoryHandler struct {
	Store *history.Store
}

func (h *HistoryHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/history")
	group.GET("/range", h.seriesRange)
	group.GET("/day", h.day)
	group.GET("/neighbors", h.neighbors)
	group.GET("/slice", h.slice)
	group.GET("/window", h.window)
}

func (h *HistoryHandler) seriesRange(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "history store unavailable", nil)
		return
	}
	min, max := h.Store.Range()
	Ok(c, gin.H{"min": min, "max": max, "entries": h.Store.Len()}, nil)
}

func (h *HistoryHandler) day(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "history store unavailable", nil)
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "date is required (YYYY-MM-DD)", nil)
		return
	}
	entries := h.Store.EntriesOn(date)
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	Ok(c, entries, nil)
}

func (h *HistoryHandler) neighbors(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "history store unavailable", nil)
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "date is required (YYYY-MM-DD)", nil)
		return
	}
	count := intQuery(c, "count", 3)
	before, after := h.Store.Neighbors(date, count)
	if before == nil {
		before = []models.HistoryEntry{}
	}
	if after == nil {
		after = []models.HistoryEntry{}
	}
	Ok(c, gin.H{"before": before, "after": after}, nil)
}

func (h *HistoryHandler) slice(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "history store unavailable", nil)
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "date is required (YYYY-MM-DD)", nil)
		return
	}
	direction := strings.TrimSpace(c.DefaultQuery("direction", history.Backward))
	if direction != history.Backward && direction != history.Forward {
		Error(c, http.StatusBadRequest, "direction must be backward or forward", nil)
		return
	}
	count := intQuery(c, "count", 7)
	entries := h.Store.Slice(date, count, direction)
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	Ok(c, entries, nil)
}

func (h *HistoryHandler) window(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "history store unavailable", nil)
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		Error(c, http.StatusBadRequest, "date is required (YYYY-MM-DD)", nil)
		return
	}
	days := intQuery(c, "days", 7)
	prices := h.Store.WindowAround(date, days)
	if prices == nil {
		prices = []models.DailyPrice{}
	}
	Ok(c, prices, nil)
}
