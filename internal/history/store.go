// Package history owns the date-indexed daily market/event series and its
// range, neighbor and window queries. The series is loaded once per session
// and immutable afterwards; a day with no data is an empty result, never an
// error.
package history

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"patternlab/internal/models"
)

// Slice directions.
const (
	Backward = "backward"
	Forward  = "forward"
)

// DefaultSignificantIntensity is the threshold above which an entry counts as
// a significant event for neighbor queries.
const DefaultSignificantIntensity = 5

type Store struct {
	Logger *zap.Logger

	// SignificantIntensity overrides the neighbor filter threshold when > 0.
	SignificantIntensity float64

	mu      sync.RWMutex
	entries []models.HistoryEntry
	byDay   map[string][]int
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		Logger: logger,
		byDay:  map[string][]int{},
	}
}

// Load replaces the series with a sorted copy of entries and rebuilds the
// per-day index. Validation and row dropping happen upstream in the feed
// mapping stage; Load only orders and indexes.
func (s *Store) Load(entries []models.HistoryEntry) {
	sorted := make([]models.HistoryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	byDay := make(map[string][]int, len(sorted))
	for i, e := range sorted {
		key := e.DayKey()
		byDay[key] = append(byDay[key], i)
	}

	s.mu.Lock()
	s.entries = sorted
	s.byDay = byDay
	s.mu.Unlock()

	if s.Logger != nil {
		s.Logger.Info("history series loaded",
			zap.Int("entries", len(sorted)),
			zap.Int("days", len(byDay)),
		)
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Series returns the full sorted series. The slice is shared and must be
// treated as read-only; the store never mutates entries after Load.
func (s *Store) Series() []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries
}

// Range reports the min and max day keys of the loaded series, or empty
// strings when nothing is loaded.
func (s *Store) Range() (min, max string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return "", ""
	}
	return s.entries[0].DayKey(), s.entries[len(s.entries)-1].DayKey()
}

// EntriesOn returns all entries sharing the exact calendar date.
func (s *Store) EntriesOn(date time.Time) []models.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byDay[models.DayKey(date)]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]models.HistoryEntry, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.entries[i])
	}
	return out
}

// Neighbors returns up to count significant events (intensity above the
// threshold) strictly before and strictly after date, both in chronological
// order.
func (s *Store) Neighbors(date time.Time, count int) (before, after []models.HistoryEntry) {
	if count <= 0 {
		return nil, nil
	}
	threshold := s.SignificantIntensity
	if threshold <= 0 {
		threshold = DefaultSignificantIntensity
	}
	key := models.DayKey(date)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.IntensityScore <= threshold {
			continue
		}
		switch {
		case e.DayKey() < key:
			before = append(before, e)
		case e.DayKey() > key:
			after = append(after, e)
			if len(after) >= count {
				return trimHead(before, count), after
			}
		}
	}
	return trimHead(before, count), after
}

// trimHead keeps the last count elements, preserving chronological order.
func trimHead(entries []models.HistoryEntry, count int) []models.HistoryEntry {
	if len(entries) > count {
		return entries[len(entries)-count:]
	}
	return entries
}

// Slice returns a contiguous index-based run of the sorted series anchored at
// the first entry carrying date, extending count entries backward or forward
// inclusive of the anchor. An unknown date yields nil.
func (s *Store) Slice(date time.Time, count int, direction string) []models.HistoryEntry {
	if count <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byDay[models.DayKey(date)]
	if len(idxs) == 0 {
		return nil
	}
	anchor := idxs[0]

	var lo, hi int
	if direction == Backward {
		lo = anchor - count + 1
		hi = anchor + 1
	} else {
		lo = anchor
		hi = anchor + count
	}
	if lo < 0 {
		lo = 0
	}
	if hi > len(s.entries) {
		hi = len(s.entries)
	}
	out := make([]models.HistoryEntry, hi-lo)
	copy(out, s.entries[lo:hi])
	return out
}

// WindowAround returns one price per day for every day within windowDays on
// either side of date, de-duplicating same-day entries by keeping the first,
// in chronological order.
func (s *Store) WindowAround(date time.Time, windowDays int) []models.DailyPrice {
	if windowDays < 0 {
		return nil
	}
	lo := models.DayKey(date.AddDate(0, 0, -windowDays))
	hi := models.DayKey(date.AddDate(0, 0, windowDays))

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DailyPrice
	seen := map[string]struct{}{}
	for _, e := range s.entries {
		key := e.DayKey()
		if key < lo || key > hi {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.DailyPrice{Date: e.Date, Price: e.Price})
	}
	return out
}
