package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"patternlab/internal/backtest"
	"patternlab/internal/metrics"
	"patternlab/internal/models"
)

type BacktestHandler struct {
	Backtester *backtest.Backtester
}

func (h *BacktestHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/backtest", h.run)
}

func (h *BacktestHandler) run(c *gin.Context) {
	if h.Backtester == nil {
		Error(c, http.StatusInternalServerError, "backtester unavailable", nil)
		return
	}
	var pattern models.Pattern
	if err := c.ShouldBindJSON(&pattern); err != nil {
		Error(c, http.StatusBadRequest, "invalid pattern payload", nil)
		return
	}
	if pattern.Metric != models.MetricDailyChange && pattern.Metric != models.MetricVolatility {
		Error(c, http.StatusBadRequest, "metric must be dailyChange or volatility", nil)
		return
	}
	if pattern.Operator != models.OpGreaterThan && pattern.Operator != models.OpLessThan {
		Error(c, http.StatusBadRequest, "operator must be gt or lt", nil)
		return
	}
	if pattern.AnalysisWindow <= 0 {
		Error(c, http.StatusBadRequest, "analysis_window must be positive", nil)
		return
	}

	result := h.Backtester.Run(pattern)
	metrics.BacktestsRun.Inc()
	Ok(c, result, nil)
}
