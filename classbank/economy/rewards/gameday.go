package rewards

import "time"

// GameDay returns the index of the 24-hour accounting window containing now.
// The window boundary sits at resetHour in loc, not midnight: 05:59 with a
// 06:00 reset still belongs to yesterday's window. Counters are keyed by
// this index, so re-runs and timezone edges stay testable in isolation.
func GameDay(now time.Time, resetHour int, loc *time.Location) int64 {
	if loc == nil {
		loc = time.UTC
	}
	shifted := now.In(loc).Add(-time.Duration(resetHour) * time.Hour)
	y, m, d := shifted.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// NextReset returns when the current game day rolls over.
func NextReset(now time.Time, resetHour int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	reset := time.Date(local.Year(), local.Month(), local.Day(), resetHour, 0, 0, 0, loc)
	if !reset.After(local) {
		reset = reset.AddDate(0, 0, 1)
	}
	return reset
}
