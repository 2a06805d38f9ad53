package services

import (
	"context"
	"testing"
	"time"

	"habitquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteHabitLevelsUp(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	user := createUser(t, db, "walker", 95)
	habit, err := svc.habits.CreateHabit(ctx, user.ID, CreateHabitInput{Title: "Walk"})
	require.NoError(t, err)
	assert.Equal(t, int64(models.DefaultHabitXP), habit.XPValue)
	assert.Equal(t, models.FrequencyDaily, habit.Frequency)

	res, err := svc.habits.CompleteHabit(ctx, user.ID, habit.ID, CompleteHabitInput{})
	require.NoError(t, err)
	assert.True(t, res.Logged)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.NewLevel)
	assert.Equal(t, int64(10), res.XPGained)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 1, res.TodayProgress)

	reloaded := reloadUser(t, db, user.ID)
	assert.Equal(t, int64(105), reloaded.XP)
	assert.Equal(t, 2, reloaded.Level)
	assert.NotNil(t, reloaded.LastLevelUpAt)

	var ledger []models.XPEvent
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.Equal(t, models.XPSourceHabit, ledger[0].Source)
	assert.Equal(t, 1, ledger[0].LevelBefore)
	assert.Equal(t, 2, ledger[0].LevelAfter)

	assert.True(t, svc.published.has("habit.completed", user.ID))
	assert.True(t, svc.published.has("level.up", user.ID))
}

func TestCompleteHabitStreakOncePerDay(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	user := createUser(t, db, "runner", 0)
	habit, err := svc.habits.CreateHabit(ctx, user.ID, CreateHabitInput{Title: "Run", TargetCount: 3})
	require.NoError(t, err)

	day1 := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	svc.habits.now = func() time.Time { return day1 }
	first, err := svc.habits.CompleteHabit(ctx, user.ID, habit.ID, CompleteHabitInput{Count: 2})
	require.NoError(t, err)
	second, err := svc.habits.CompleteHabit(ctx, user.ID, habit.ID, CompleteHabitInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Streak)
	assert.Equal(t, 1, second.Streak)
	assert.Equal(t, 3, second.TodayProgress)

	svc.habits.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	next, err := svc.habits.CompleteHabit(ctx, user.ID, habit.ID, CompleteHabitInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Streak)
	assert.Equal(t, 1, next.TodayProgress)

	svc.habits.now = func() time.Time { return day1.AddDate(0, 0, 4) }
	afterGap, err := svc.habits.CompleteHabit(ctx, user.ID, habit.ID, CompleteHabitInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, afterGap.Streak)

	var stored models.Habit
	require.NoError(t, db.Where("id = ?", habit.ID).First(&stored).Error)
	assert.Equal(t, 2, stored.LongestStreak)
}

func TestCompleteHabitValidatesAndChecksOwnership(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	owner := createUser(t, db, "owner", 0)
	other := createUser(t, db, "other", 0)
	habit, err := svc.habits.CreateHabit(ctx, owner.ID, CreateHabitInput{Title: "Read"})
	require.NoError(t, err)

	_, err = svc.habits.CompleteHabit(ctx, other.ID, habit.ID, CompleteHabitInput{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.habits.CompleteHabit(ctx, owner.ID, habit.ID, CompleteHabitInput{Count: -1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.habits.CreateHabit(ctx, owner.ID, CreateHabitInput{Title: "  "})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.habits.CreateHabit(ctx, owner.ID, CreateHabitInput{Title: "x", Frequency: "monthly"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResetMissedStreaks(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	user := createUser(t, db, "sleepy", 0)

	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	svc.habits.now = func() time.Time { return now }

	mk := func(title string, freq models.Frequency, last time.Time) string {
		h, err := svc.habits.CreateHabit(ctx, user.ID, CreateHabitInput{Title: title, Frequency: freq})
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.Habit{}).Where("id = ?", h.ID).
			Updates(map[string]any{"streak": 4, "last_completed_at": last}).Error)
		return h.ID
	}
	keptDaily := mk("yesterday", models.FrequencyDaily, now.AddDate(0, 0, -1))
	brokenDaily := mk("two days ago", models.FrequencyDaily, now.AddDate(0, 0, -2))
	keptWeekly := mk("last week", models.FrequencyWeekly, now.AddDate(0, 0, -8))
	brokenWeekly := mk("two weeks ago", models.FrequencyWeekly, now.AddDate(0, 0, -15))

	n, err := svc.habits.ResetMissedStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	streak := func(id string) int {
		var h models.Habit
		require.NoError(t, db.Where("id = ?", id).First(&h).Error)
		return h.Streak
	}
	assert.Equal(t, 4, streak(keptDaily))
	assert.Equal(t, 0, streak(brokenDaily))
	assert.Equal(t, 4, streak(keptWeekly))
	assert.Equal(t, 0, streak(brokenWeekly))
}

func TestListHabitsReportsPeriodProgressAndDeleteRemovesLogs(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	user := createUser(t, db, "lister", 0)

	daily, err := svc.habits.CreateHabit(ctx, user.ID, CreateHabitInput{Title: "Stretch"})
	require.NoError(t, err)
	weekly, err := svc.habits.CreateHabit(ctx, user.ID, CreateHabitInput{Title: "Swim", Frequency: models.FrequencyWeekly})
	require.NoError(t, err)

	_, err = svc.habits.CompleteHabit(ctx, user.ID, daily.ID, CompleteHabitInput{Count: 2})
	require.NoError(t, err)
	_, err = svc.habits.CompleteHabit(ctx, user.ID, weekly.ID, CompleteHabitInput{})
	require.NoError(t, err)

	habits, err := svc.habits.ListHabits(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, habits, 2)
	byID := map[string]int{}
	for _, h := range habits {
		byID[h.ID] = h.TodayProgress
	}
	assert.Equal(t, 2, byID[daily.ID])
	assert.Equal(t, 1, byID[weekly.ID])

	require.NoError(t, svc.habits.DeleteHabit(ctx, user.ID, daily.ID))
	var logs int64
	require.NoError(t, db.Model(&models.HabitLog{}).Where("habit_id = ?", daily.ID).Count(&logs).Error)
	assert.Zero(t, logs)
	assert.ErrorIs(t, svc.habits.DeleteHabit(ctx, user.ID, daily.ID), ErrNotFound)
}
