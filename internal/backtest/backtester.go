// Package backtest evaluates declarative threshold patterns against the
// loaded history series.
package backtest

import (
	"go.uber.org/zap"

	"patternlab/internal/history"
	"patternlab/internal/models"
)

type Backtester struct {
	Store  *history.Store
	Logger *zap.Logger
}

// Run scans the sorted series and reports every day the pattern held together
// with the percent price change AnalysisWindow entries later. Entries without
// a full forward window are excluded. Zero matches is a normal result.
func (b *Backtester) Run(p models.Pattern) models.BacktestResult {
	result := models.BacktestResult{Matches: []models.BacktestMatch{}}
	if b == nil || b.Store == nil {
		return result
	}
	window := p.AnalysisWindow
	if window <= 0 {
		return result
	}
	series := b.Store.Series()

	for i := 0; i+window < len(series); i++ {
		value, ok := metricValue(series[i], p.Metric)
		if !ok || !compare(value, p.Operator, p.Value) {
			continue
		}
		base := series[i].Price
		if base == 0 {
			continue
		}
		performance := (series[i+window].Price - base) / base * 100
		result.Matches = append(result.Matches, models.BacktestMatch{
			Date:        series[i].Date,
			Performance: performance,
		})
		result.Summary.Total++
		if performance > 0 {
			result.Summary.Successes++
		}
		result.Summary.TotalReturn += performance
	}

	if b.Logger != nil {
		b.Logger.Debug("backtest run",
			zap.String("metric", p.Metric),
			zap.String("operator", p.Operator),
			zap.Float64("value", p.Value),
			zap.Int("window", window),
			zap.Int("matches", result.Summary.Total),
		)
	}
	return result
}

func metricValue(e models.HistoryEntry, metric string) (float64, bool) {
	switch metric {
	case models.MetricDailyChange:
		return e.DailyChange, true
	case models.MetricVolatility:
		return e.Volatility, true
	default:
		return 0, false
	}
}

func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case models.OpGreaterThan:
		return value > threshold
	case models.OpLessThan:
		return value < threshold
	default:
		return false
	}
}
