package rewards

import (
	"testing"
	"time"
)

func TestGameDayBoundary(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name    string
		a, b    time.Time
		sameDay bool
	}{
		{
			name:    "before and after reset differ",
			a:       time.Date(2026, 3, 10, 5, 59, 0, 0, loc),
			b:       time.Date(2026, 3, 10, 6, 0, 0, 0, loc),
			sameDay: false,
		},
		{
			name:    "same window across midnight",
			a:       time.Date(2026, 3, 10, 23, 0, 0, 0, loc),
			b:       time.Date(2026, 3, 11, 5, 0, 0, 0, loc),
			sameDay: true,
		},
		{
			name:    "early morning belongs to previous day",
			a:       time.Date(2026, 3, 10, 12, 0, 0, 0, loc),
			b:       time.Date(2026, 3, 11, 1, 0, 0, 0, loc),
			sameDay: true,
		},
		{
			name:    "full day apart",
			a:       time.Date(2026, 3, 10, 12, 0, 0, 0, loc),
			b:       time.Date(2026, 3, 11, 12, 0, 0, 0, loc),
			sameDay: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dayA := GameDay(tt.a, 6, loc)
			dayB := GameDay(tt.b, 6, loc)
			if (dayA == dayB) != tt.sameDay {
				t.Errorf("GameDay(%v)=%d, GameDay(%v)=%d, want same=%v", tt.a, dayA, tt.b, dayB, tt.sameDay)
			}
		})
	}
}

func TestGameDayTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// 07:00 UTC is 02:00 or 03:00 in New York, before the 06:00 reset there
	utcMorning := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	prevEvening := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	if GameDay(utcMorning, 6, ny) != GameDay(prevEvening, 6, ny) {
		t.Error("pre-reset local morning should share the previous window")
	}
}

func TestNextReset(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 7, 30, 0, 0, loc)
	reset := NextReset(now, 6, loc)
	want := time.Date(2026, 3, 11, 6, 0, 0, 0, loc)
	if !reset.Equal(want) {
		t.Errorf("NextReset() = %v, want %v", reset, want)
	}

	before := time.Date(2026, 3, 10, 5, 0, 0, 0, loc)
	reset = NextReset(before, 6, loc)
	want = time.Date(2026, 3, 10, 6, 0, 0, 0, loc)
	if !reset.Equal(want) {
		t.Errorf("NextReset() before reset = %v, want %v", reset, want)
	}
}
