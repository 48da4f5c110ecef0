package models

import "time"

// Metrics a Pattern may test.
const (
	MetricDailyChange = "dailyChange"
	MetricVolatility  = "volatility"
)

// Comparison operators shared by backtest patterns and signal triggers.
const (
	OpGreaterThan = "gt"
	OpLessThan    = "lt"
)

// Pattern is a declarative threshold rule over one daily metric plus a
// forward-looking analysis window in days.
type Pattern struct {
	Metric         string  `json:"metric"`
	Operator       string  `json:"operator"`
	Value          float64 `json:"value"`
	AnalysisWindow int     `json:"analysis_window"`
}

// BacktestMatch is one historical day on which the pattern held, with the
// percent price change measured AnalysisWindow entries later.
type BacktestMatch struct {
	Date        time.Time `json:"date"`
	Performance float64   `json:"performance"`
}

// BacktestSummary aggregates a backtest run. Mean return is derived by the
// caller as TotalReturn / Total.
type BacktestSummary struct {
	Total       int     `json:"total"`
	Successes   int     `json:"successes"`
	TotalReturn float64 `json:"total_return"`
}

// BacktestResult bundles the per-day matches with their summary.
type BacktestResult struct {
	Matches []BacktestMatch `json:"matches"`
	Summary BacktestSummary `json:"summary"`
}
