package handler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"patternlab/internal/models"
)

type MarketHandler struct {
	Quotes    func() models.AssetSnapshot
	Sentiment func() *models.SentimentSnapshot
}

func (h *MarketHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/market")
	group.GET("/snapshot", h.snapshot)
	group.GET("/sentiment", h.sentiment)
}

func (h *MarketHandler) snapshot(c *gin.Context) {
	if h.Quotes == nil {
		Error(c, http.StatusInternalServerError, "quote stream unavailable", nil)
		return
	}
	snap := h.Quotes()
	quotes := make([]models.AssetQuote, 0, len(snap))
	for _, q := range snap {
		quotes = append(quotes, q)
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	Ok(c, quotes, nil)
}

func (h *MarketHandler) sentiment(c *gin.Context) {
	if h.Sentiment == nil {
		Error(c, http.StatusInternalServerError, "sentiment poller unavailable", nil)
		return
	}
	latest := h.Sentiment()
	if latest == nil {
		Error(c, http.StatusServiceUnavailable, "sentiment not yet available", nil)
		return
	}
	Ok(c, latest, nil)
}
