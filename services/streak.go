package services

import (
	"time"

	"habitquest/models"
)

// civilDay numbers calendar days in loc so that consecutive dates differ by
// exactly one regardless of DST.
func civilDay(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// periodIndex numbers the habit's periods: calendar days for daily habits,
// ISO weeks (Monday start) for weekly habits.
func periodIndex(freq models.Frequency, t time.Time, loc *time.Location) int64 {
	day := civilDay(t, loc)
	if freq != models.FrequencyWeekly {
		return day
	}
	// 1970-01-01 was a Thursday; shift so weeks start on Monday.
	return floorDiv(day+3, 7)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// PeriodStart returns the start of the period containing t.
func PeriodStart(freq models.Frequency, t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if freq == models.FrequencyWeekly {
		offset := (int(local.Weekday()) + 6) % 7 // Monday = 0
		start = start.AddDate(0, 0, -offset)
	}
	return start
}

// NextStreak applies one completion at now. Completing again in the same
// period keeps the streak, completing in the following period extends it,
// anything later starts over at 1.
func NextStreak(freq models.Frequency, current int, lastCompleted *time.Time, now time.Time, loc *time.Location) int {
	if lastCompleted == nil || current <= 0 {
		return 1
	}
	switch periodIndex(freq, now, loc) - periodIndex(freq, *lastCompleted, loc) {
	case 0:
		return current
	case 1:
		return current + 1
	default:
		return 1
	}
}

// StreakCutoff is the earliest completion time that keeps a streak alive at now.
func StreakCutoff(freq models.Frequency, now time.Time, loc *time.Location) time.Time {
	start := PeriodStart(freq, now, loc)
	if freq == models.FrequencyWeekly {
		return start.AddDate(0, 0, -7)
	}
	return start.AddDate(0, 0, -1)
}
