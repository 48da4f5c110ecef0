package history

import (
	"testing"
	"time"

	"patternlab/internal/models"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(models.DayLayout, value)
	if err != nil {
		t.Fatalf("parse day %q: %v", value, err)
	}
	return parsed.UTC()
}

func entry(t *testing.T, date string, price float64, intensity float64) models.HistoryEntry {
	t.Helper()
	return models.HistoryEntry{
		Date:           day(t, date),
		Price:          price,
		IntensityScore: intensity,
	}
}

func loadedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(nil)
	// Deliberately unsorted input; Load must order it.
	s.Load([]models.HistoryEntry{
		entry(t, "2024-01-05", 110, 7),
		entry(t, "2024-01-01", 100, 2),
		entry(t, "2024-01-03", 104, 6),
		entry(t, "2024-01-03", 105, 1),
		entry(t, "2024-01-02", 102, 8),
		entry(t, "2024-01-08", 120, 9),
	})
	return s
}

func TestRange(t *testing.T) {
	s := loadedStore(t)
	min, max := s.Range()
	if min != "2024-01-01" || max != "2024-01-08" {
		t.Fatalf("range=%s..%s want 2024-01-01..2024-01-08", min, max)
	}

	empty := NewStore(nil)
	min, max = empty.Range()
	if min != "" || max != "" {
		t.Fatalf("empty range=%q..%q want empty strings", min, max)
	}
}

func TestEntriesOn(t *testing.T) {
	s := loadedStore(t)
	got := s.EntriesOn(day(t, "2024-01-03"))
	if len(got) != 2 {
		t.Fatalf("entries=%d want=2", len(got))
	}
	if got[0].Price != 104 || got[1].Price != 105 {
		t.Fatalf("prices=%v,%v want insertion order 104,105", got[0].Price, got[1].Price)
	}
	if got := s.EntriesOn(day(t, "2024-02-01")); len(got) != 0 {
		t.Fatalf("missing date returned %d entries, want empty", len(got))
	}
}

func TestNeighborsFiltersAndOrders(t *testing.T) {
	s := loadedStore(t)
	before, after := s.Neighbors(day(t, "2024-01-05"), 5)
	// Significant entries before: 01-02 (8), 01-03 (6). After: 01-08 (9).
	if len(before) != 2 {
		t.Fatalf("before=%d want=2", len(before))
	}
	if before[0].DayKey() != "2024-01-02" || before[1].DayKey() != "2024-01-03" {
		t.Fatalf("before order=%s,%s", before[0].DayKey(), before[1].DayKey())
	}
	if len(after) != 1 || after[0].DayKey() != "2024-01-08" {
		t.Fatalf("after=%v", after)
	}

	before, after = s.Neighbors(day(t, "2024-01-05"), 1)
	if len(before) != 1 || before[0].DayKey() != "2024-01-03" {
		t.Fatalf("count=1 should keep the closest prior entry, got %v", before)
	}
	if len(after) != 1 {
		t.Fatalf("after=%d want=1", len(after))
	}
}

func TestSlice(t *testing.T) {
	s := loadedStore(t)

	got := s.Slice(day(t, "2024-01-03"), 3, Backward)
	if len(got) != 3 || got[0].DayKey() != "2024-01-01" || got[2].DayKey() != "2024-01-03" {
		t.Fatalf("backward slice=%v", keys(got))
	}

	got = s.Slice(day(t, "2024-01-03"), 3, Forward)
	if len(got) != 3 || got[0].DayKey() != "2024-01-03" || got[2].DayKey() != "2024-01-05" {
		t.Fatalf("forward slice=%v", keys(got))
	}

	// Clamped at the series head.
	got = s.Slice(day(t, "2024-01-01"), 4, Backward)
	if len(got) != 1 {
		t.Fatalf("clamped slice=%d want=1", len(got))
	}

	if got = s.Slice(day(t, "2024-03-01"), 2, Forward); got != nil {
		t.Fatalf("unknown anchor should yield nil, got %v", keys(got))
	}
}

func TestWindowAroundDeduplicates(t *testing.T) {
	s := loadedStore(t)
	got := s.WindowAround(day(t, "2024-01-03"), 2)
	// Days 01-01..01-05, one price per day, first entry wins on 01-03.
	if len(got) != 4 {
		t.Fatalf("window=%d want=4", len(got))
	}
	if got[2].Price != 104 {
		t.Fatalf("dedupe kept price=%v want first entry 104", got[2].Price)
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Fatalf("window not chronological at %d", i)
		}
	}
}

func keys(entries []models.HistoryEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.DayKey())
	}
	return out
}
