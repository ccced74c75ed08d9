package timeutil

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	t.Parallel()

	value := time.Date(2026, 1, 15, 13, 45, 12, 99, time.Local)
	got := StartOfDay(value)
	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDaysInRange(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 30, 10, 0, 0, 0, time.Local)
	to := time.Date(2026, 2, 2, 8, 0, 0, 0, time.Local)

	days := DaysInRange(from, to)
	if len(days) != 4 {
		t.Fatalf("expected 4 days, got %d", len(days))
	}
	if DayKey(days[0]) != "2026-01-30" || DayKey(days[3]) != "2026-02-02" {
		t.Fatalf("unexpected bounds %s..%s", DayKey(days[0]), DayKey(days[3]))
	}
}

func TestDaysInRange_Inverted(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 2, 0, 0, 0, 0, time.Local)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local)
	if days := DaysInRange(from, to); len(days) != 0 {
		t.Fatalf("expected empty range, got %d days", len(days))
	}
}

func TestWeekOf(t *testing.T) {
	t.Parallel()

	// 2026-01-15 is a Thursday.
	monday, sunday := WeekOf(time.Date(2026, 1, 15, 12, 0, 0, 0, time.Local))
	if DayKey(monday) != "2026-01-12" {
		t.Fatalf("expected week start 2026-01-12, got %s", DayKey(monday))
	}
	if DayKey(sunday) != "2026-01-18" {
		t.Fatalf("expected week end 2026-01-18, got %s", DayKey(sunday))
	}

	// A Sunday belongs to the week that started the previous Monday.
	monday, _ = WeekOf(time.Date(2026, 1, 18, 6, 0, 0, 0, time.Local))
	if DayKey(monday) != "2026-01-12" {
		t.Fatalf("expected Sunday to map to 2026-01-12, got %s", DayKey(monday))
	}
}
