package services

import (
	"testing"
	"time"

	"habitquest/models"

	"github.com/stretchr/testify/assert"
)

func TestIsEligible(t *testing.T) {
	stats := UserStats{
		XP:                  480,
		Level:               4,
		BestStreak:          6,
		TotalHabits:         4,
		CompletedHabits:     3,
		TotalGoals:          2,
		CompletedMilestones: 10,
	}
	early := at("2026-03-10T06:45:00Z")
	late := at("2026-03-10T07:01:00Z")

	tests := []struct {
		name     string
		criteria models.Criteria
		ctx      CheckContext
		want     bool
	}{
		{"streak from snapshot", models.Criteria{Type: models.CriteriaStreak, Threshold: 6}, CheckContext{}, true},
		{"streak from context", models.Criteria{Type: models.CriteriaStreak, Threshold: 7}, CheckContext{Streak: ptr(7)}, true},
		{"context streak wins over snapshot", models.Criteria{Type: models.CriteriaStreak, Threshold: 3}, CheckContext{Streak: ptr(1)}, false},
		{"completion 75 percent", models.Criteria{Type: models.CriteriaCompletion, Threshold: 75}, CheckContext{}, true},
		{"completion below threshold", models.Criteria{Type: models.CriteriaCompletion, Threshold: 100}, CheckContext{}, false},
		{"total habits", models.Criteria{Type: models.CriteriaTotalHabits, Threshold: 5}, CheckContext{}, false},
		{"total goals", models.Criteria{Type: models.CriteriaTotalGoals, Threshold: 2}, CheckContext{}, true},
		{"early completion", models.Criteria{Type: models.CriteriaEarlyCompletion, SpecificTime: "07:00"}, CheckContext{CompletedAt: &early}, true},
		{"late completion", models.Criteria{Type: models.CriteriaEarlyCompletion, SpecificTime: "07:00"}, CheckContext{CompletedAt: &late}, false},
		{"early completion without time", models.Criteria{Type: models.CriteriaEarlyCompletion, SpecificTime: "07:00"}, CheckContext{}, false},
		{"early completion bad clock", models.Criteria{Type: models.CriteriaEarlyCompletion, SpecificTime: "7am"}, CheckContext{CompletedAt: &early}, false},
		{"milestones", models.Criteria{Type: models.CriteriaMilestoneCompletion, Threshold: 10}, CheckContext{}, true},
		{"level from snapshot", models.Criteria{Type: models.CriteriaLevelReached, Threshold: 5}, CheckContext{}, false},
		{"level from context", models.Criteria{Type: models.CriteriaLevelReached, Threshold: 5}, CheckContext{Level: ptr(5)}, true},
		{"xp from snapshot", models.Criteria{Type: models.CriteriaXPEarned, Threshold: 480}, CheckContext{}, true},
		{"xp from context", models.Criteria{Type: models.CriteriaXPEarned, Threshold: 1000}, CheckContext{XP: ptr(int64(999))}, false},
		{"unknown type", models.Criteria{Type: "SOCIAL", Threshold: 0}, CheckContext{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.criteria, stats, tt.ctx, time.UTC))
		})
	}
}

func TestCompletionWithNoHabits(t *testing.T) {
	c := models.Criteria{Type: models.CriteriaCompletion, Threshold: 0}
	assert.False(t, IsEligible(c, UserStats{}, CheckContext{}, time.UTC))
}

func TestEarlyCompletionUsesLocalTime(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	completed := at("2026-03-10T11:30:00Z") // 06:30 local
	c := models.Criteria{Type: models.CriteriaEarlyCompletion, SpecificTime: "07:00"}

	assert.True(t, IsEligible(c, UserStats{}, CheckContext{CompletedAt: &completed}, loc))
	assert.False(t, IsEligible(c, UserStats{}, CheckContext{CompletedAt: &completed}, time.UTC))
}
