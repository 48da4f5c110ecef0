// Package feed is the ingestion boundary: it maps raw upstream rows onto
// typed history entries and maintains the live price/sentiment snapshots. The
// core never sees untyped data.
package feed

import (
	"time"

	"go.uber.org/zap"

	"patternlab/internal/models"
)

// Row is the explicit field contract for one raw feed row. Pointer fields
// distinguish absent values from zero values.
type Row struct {
	Date           string   `json:"date"`
	Price          *float64 `json:"price"`
	DailyChange    float64  `json:"daily_change"`
	Volatility     float64  `json:"volatility"`
	VolumeChange   float64  `json:"volume_change"`
	EventType      string   `json:"event_type"`
	Direction      string   `json:"direction"`
	IntensityScore float64  `json:"intensity_score"`
	Status         string   `json:"status"`
}

// MapRows converts raw rows to typed entries. Rows missing a date or price
// are dropped with a warning; dropping is non-fatal by design.
func MapRows(rows []Row, logger *zap.Logger) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(rows))
	dropped := 0
	for i, r := range rows {
		date, ok := parseDate(r.Date)
		if !ok || r.Price == nil {
			dropped++
			if logger != nil {
				logger.Warn("dropping malformed feed row",
					zap.Int("row", i),
					zap.String("date", r.Date),
					zap.Bool("has_price", r.Price != nil),
				)
			}
			continue
		}
		out = append(out, models.HistoryEntry{
			Date:           date,
			Price:          *r.Price,
			DailyChange:    r.DailyChange,
			Volatility:     r.Volatility,
			VolumeChange:   r.VolumeChange,
			EventType:      r.EventType,
			Direction:      r.Direction,
			IntensityScore: r.IntensityScore,
			Status:         r.Status,
		})
	}
	if dropped > 0 && logger != nil {
		logger.Warn("feed rows dropped during mapping", zap.Int("dropped", dropped), zap.Int("kept", len(out)))
	}
	return out
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(models.DayLayout, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
