package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"patternlab/internal/trade"
)

type TradeHandler struct {
	Ledger *trade.PaperLedger
}

func (h *TradeHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/trades", h.list)
}

func (h *TradeHandler) list(c *gin.Context) {
	if h.Ledger == nil {
		Error(c, http.StatusInternalServerError, "ledger unavailable", nil)
		return
	}
	items := h.Ledger.ListTrades(c.Request.Context())
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	meta := paginationMeta(limit, offset, int64(len(items)))
	Ok(c, page(items, limit, offset), meta)
}
