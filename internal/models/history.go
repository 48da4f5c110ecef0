package models

import "time"

// DayLayout is the calendar-day format used for date keys and wire payloads.
const DayLayout = "2006-01-02"

// Event direction labels as they arrive from the upstream feed.
const (
	DirectionPositive = "POSITIVE"
	DirectionNegative = "NEGATIVE"
	DirectionNeutral  = "NEUTRAL"
)

// HistoryEntry is one daily observation of the tracked asset: price plus the
// event metadata attached to that day. Several entries may share a date.
type HistoryEntry struct {
	Date           time.Time `json:"date"`
	Price          float64   `json:"price"`
	DailyChange    float64   `json:"daily_change"`
	Volatility     float64   `json:"volatility"`
	VolumeChange   float64   `json:"volume_change"`
	EventType      string    `json:"event_type"`
	Direction      string    `json:"direction"`
	IntensityScore float64   `json:"intensity_score"`
	Status         string    `json:"status"`
}

// DayKey returns the calendar-day lookup key for the entry.
func (e HistoryEntry) DayKey() string {
	return e.Date.UTC().Format(DayLayout)
}

// DayKey normalizes an arbitrary timestamp to its calendar-day key.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// DailyPrice is one price per day, used for comparison windows around an event.
type DailyPrice struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}
