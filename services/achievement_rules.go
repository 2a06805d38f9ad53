package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"habitquest/models"
)

// UserStats is the snapshot an achievement pass is evaluated against.
type UserStats struct {
	XP                  int64
	Level               int
	BestStreak          int
	TotalHabits         int64
	CompletedHabits     int64 // habits whose current period progress reached target
	TotalGoals          int64
	CompletedMilestones int64
}

// CheckContext carries values from the event that triggered the check.
// Nil fields fall back to the snapshot.
type CheckContext struct {
	Streak      *int       `json:"streak,omitempty"`
	Level       *int       `json:"level,omitempty"`
	XP          *int64     `json:"xp,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsEligible evaluates one criterion. Unknown types are never eligible.
func IsEligible(c models.Criteria, stats UserStats, ctx CheckContext, loc *time.Location) bool {
	switch c.Type {
	case models.CriteriaStreak:
		streak := stats.BestStreak
		if ctx.Streak != nil {
			streak = *ctx.Streak
		}
		return int64(streak) >= c.Threshold
	case models.CriteriaCompletion:
		if stats.TotalHabits == 0 {
			return false
		}
		return stats.CompletedHabits*100 >= c.Threshold*stats.TotalHabits
	case models.CriteriaTotalHabits:
		return stats.TotalHabits >= c.Threshold
	case models.CriteriaTotalGoals:
		return stats.TotalGoals >= c.Threshold
	case models.CriteriaEarlyCompletion:
		if ctx.CompletedAt == nil {
			return false
		}
		limit, err := parseClock(c.SpecificTime)
		if err != nil {
			return false
		}
		local := ctx.CompletedAt.In(loc)
		return local.Hour()*60+local.Minute() <= limit
	case models.CriteriaMilestoneCompletion:
		return stats.CompletedMilestones >= c.Threshold
	case models.CriteriaLevelReached:
		level := stats.Level
		if ctx.Level != nil {
			level = *ctx.Level
		}
		return int64(level) >= c.Threshold
	case models.CriteriaXPEarned:
		xp := stats.XP
		if ctx.XP != nil {
			xp = *ctx.XP
		}
		return xp >= c.Threshold
	}
	return false
}

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}
