package backtest

import (
	"math"
	"testing"
	"time"

	"patternlab/internal/history"
	"patternlab/internal/models"
)

func mkSeries(t *testing.T, prices []float64, changes []float64) *history.Store {
	t.Helper()
	if len(prices) != len(changes) {
		t.Fatalf("prices/changes length mismatch")
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]models.HistoryEntry, 0, len(prices))
	for i := range prices {
		entries = append(entries, models.HistoryEntry{
			Date:        start.AddDate(0, 0, i),
			Price:       prices[i],
			DailyChange: changes[i],
			Volatility:  changes[i] / 2,
		})
	}
	s := history.NewStore(nil)
	s.Load(entries)
	return s
}

func TestRunMatchesAndSummary(t *testing.T) {
	// Entry 1 (price 105, change 5) is the only hit; 6 entries later price 120.
	prices := []float64{100, 105, 106, 107, 108, 109, 110, 120}
	changes := []float64{0, 5, 1, 1, 1, 1, 1, 9} // final entry has no forward window
	b := &Backtester{Store: mkSeries(t, prices, changes)}

	res := b.Run(models.Pattern{
		Metric:         models.MetricDailyChange,
		Operator:       models.OpGreaterThan,
		Value:          3,
		AnalysisWindow: 6,
	})

	if res.Summary.Total != 1 || len(res.Matches) != 1 {
		t.Fatalf("total=%d matches=%d want 1/1", res.Summary.Total, len(res.Matches))
	}
	want := (120.0 - 105.0) / 105.0 * 100
	if math.Abs(res.Matches[0].Performance-want) > 1e-9 {
		t.Fatalf("performance=%v want=%v", res.Matches[0].Performance, want)
	}
	if res.Summary.Successes != 1 {
		t.Fatalf("successes=%d want=1", res.Summary.Successes)
	}
	if math.Abs(res.Summary.TotalReturn-want) > 1e-9 {
		t.Fatalf("total_return=%v want=%v", res.Summary.TotalReturn, want)
	}
}

func TestRunSummaryConsistency(t *testing.T) {
	prices := []float64{100, 90, 110, 95, 120, 80, 130, 70}
	changes := []float64{4, -10, 22, -14, 26, -33, 62, -46}
	b := &Backtester{Store: mkSeries(t, prices, changes)}

	res := b.Run(models.Pattern{
		Metric:         models.MetricDailyChange,
		Operator:       models.OpGreaterThan,
		Value:          0,
		AnalysisWindow: 2,
	})

	if res.Summary.Total != len(res.Matches) {
		t.Fatalf("total=%d len(matches)=%d", res.Summary.Total, len(res.Matches))
	}
	successes := 0
	sum := 0.0
	for _, m := range res.Matches {
		if m.Performance > 0 {
			successes++
		}
		sum += m.Performance
	}
	if successes != res.Summary.Successes {
		t.Fatalf("successes=%d want=%d", res.Summary.Successes, successes)
	}
	if math.Abs(sum-res.Summary.TotalReturn) > 1e-9 {
		t.Fatalf("total_return=%v want=%v", res.Summary.TotalReturn, sum)
	}
}

func TestRunForwardWindowBoundary(t *testing.T) {
	// Every entry matches, but only those with a full forward window count.
	prices := []float64{100, 101, 102, 103}
	changes := []float64{1, 1, 1, 1}
	b := &Backtester{Store: mkSeries(t, prices, changes)}

	res := b.Run(models.Pattern{
		Metric:         models.MetricDailyChange,
		Operator:       models.OpGreaterThan,
		Value:          0,
		AnalysisWindow: 2,
	})
	if res.Summary.Total != 2 {
		t.Fatalf("total=%d want=2 (last two entries lack a window)", res.Summary.Total)
	}
}

func TestRunZeroMatches(t *testing.T) {
	prices := []float64{100, 101, 102}
	changes := []float64{1, 1, 1}
	b := &Backtester{Store: mkSeries(t, prices, changes)}

	res := b.Run(models.Pattern{
		Metric:         models.MetricVolatility,
		Operator:       models.OpGreaterThan,
		Value:          99,
		AnalysisWindow: 1,
	})
	if res.Summary.Total != 0 || res.Summary.Successes != 0 || res.Summary.TotalReturn != 0 {
		t.Fatalf("summary=%+v want zeros", res.Summary)
	}
	if res.Matches == nil || len(res.Matches) != 0 {
		t.Fatalf("matches should be an empty slice, got %v", res.Matches)
	}
}

func TestRunDeterministic(t *testing.T) {
	prices := []float64{100, 105, 95, 110, 90, 115}
	changes := []float64{2, 5, -9, 15, -18, 27}
	b := &Backtester{Store: mkSeries(t, prices, changes)}
	p := models.Pattern{Metric: models.MetricDailyChange, Operator: models.OpLessThan, Value: 0, AnalysisWindow: 1}

	first := b.Run(p)
	second := b.Run(p)
	if first.Summary != second.Summary {
		t.Fatalf("summaries differ: %+v vs %+v", first.Summary, second.Summary)
	}
	for i := range first.Matches {
		if first.Matches[i] != second.Matches[i] {
			t.Fatalf("match %d differs", i)
		}
	}
}
