package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habitquest/events"
	"habitquest/models"
	"habitquest/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateHabitInput struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=2000"`
	Frequency   models.Frequency `json:"frequency" validate:"omitempty,oneof=daily weekly"`
	TargetCount int              `json:"target_count" validate:"omitempty,min=1,max=100"`
	XPValue     int64            `json:"xp_value" validate:"omitempty,min=1,max=1000"`
}

type UpdateHabitInput struct {
	Title       *string           `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
	Frequency   *models.Frequency `json:"frequency" validate:"omitempty,oneof=daily weekly"`
	TargetCount *int              `json:"target_count" validate:"omitempty,min=1,max=100"`
	XPValue     *int64            `json:"xp_value" validate:"omitempty,min=1,max=1000"`
}

type CompleteHabitInput struct {
	Count int     `json:"count" validate:"omitempty,min=1,max=100"`
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

// CompletionResult is returned by CompleteHabit. TodayProgress is the
// progress in the habit's current period (the current ISO week for weekly
// habits).
type CompletionResult struct {
	Logged        bool                 `json:"logged"`
	LeveledUp     bool                 `json:"leveled_up"`
	NewLevel      int                  `json:"new_level"`
	XPGained      int64                `json:"xp_gained"`
	Streak        int                  `json:"streak"`
	TodayProgress int                  `json:"today_progress"`
	Log           models.HabitLog      `json:"log"`
	Unlocked      []models.Achievement `json:"unlocked_achievements,omitempty"`
}

type HabitService struct {
	DB           *gorm.DB
	Progression  *ProgressionService
	Achievements *AchievementService
	Location     *time.Location
	now          func() time.Time
}

func NewHabitService(db *gorm.DB, progression *ProgressionService, achievements *AchievementService, loc *time.Location) *HabitService {
	if loc == nil {
		loc = time.UTC
	}
	return &HabitService{
		DB:           db,
		Progression:  progression,
		Achievements: achievements,
		Location:     loc,
		now:          time.Now,
	}
}

func (s *HabitService) CreateHabit(ctx context.Context, userID string, in CreateHabitInput) (*models.Habit, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	freq := in.Frequency
	if freq == "" {
		freq = models.FrequencyDaily
	}
	if freq != models.FrequencyDaily && freq != models.FrequencyWeekly {
		return nil, validationError("frequency must be daily or weekly")
	}
	target := in.TargetCount
	if target == 0 {
		target = 1
	}
	if target < 1 {
		return nil, validationError("target_count must be at least 1")
	}
	xp := in.XPValue
	if xp <= 0 {
		xp = models.DefaultHabitXP
	}

	habit := models.Habit{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Frequency:   freq,
		TargetCount: target,
		XPValue:     xp,
	}
	if err := s.DB.WithContext(ctx).Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}

	s.checkAchievements(ctx, userID, CheckContext{})
	return &habit, nil
}

// ListHabits returns the user's habits with their current period progress.
func (s *HabitService) ListHabits(ctx context.Context, userID string) ([]models.Habit, error) {
	var habits []models.Habit
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	progress, err := habitProgress(ctx, s.DB, userID, s.now(), s.Location)
	if err != nil {
		return nil, err
	}
	for i := range habits {
		habits[i].TodayProgress = progress.of(habits[i].ID, habits[i].Frequency)
	}
	return habits, nil
}

func (s *HabitService) GetHabit(ctx context.Context, userID, habitID string) (*models.Habit, error) {
	habit, err := s.loadOwned(s.DB.WithContext(ctx), userID, habitID, false)
	if err != nil {
		return nil, err
	}
	progress, err := habitProgress(ctx, s.DB, userID, s.now(), s.Location)
	if err != nil {
		return nil, err
	}
	habit.TodayProgress = progress.of(habit.ID, habit.Frequency)
	return habit, nil
}

func (s *HabitService) UpdateHabit(ctx context.Context, userID, habitID string, in UpdateHabitInput) (*models.Habit, error) {
	habit, err := s.loadOwned(s.DB.WithContext(ctx), userID, habitID, false)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validationError("title must not be empty")
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Frequency != nil {
		if *in.Frequency != models.FrequencyDaily && *in.Frequency != models.FrequencyWeekly {
			return nil, validationError("frequency must be daily or weekly")
		}
		updates["frequency"] = *in.Frequency
	}
	if in.TargetCount != nil {
		if *in.TargetCount < 1 {
			return nil, validationError("target_count must be at least 1")
		}
		updates["target_count"] = *in.TargetCount
	}
	if in.XPValue != nil {
		if *in.XPValue < 1 {
			return nil, validationError("xp_value must be positive")
		}
		updates["xp_value"] = *in.XPValue
	}
	if len(updates) == 0 {
		return habit, nil
	}

	if err := s.DB.WithContext(ctx).Model(habit).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return s.GetHabit(ctx, userID, habitID)
}

// DeleteHabit removes the habit and its logs.
func (s *HabitService) DeleteHabit(ctx context.Context, userID, habitID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadOwned(tx, userID, habitID, true); err != nil {
			return err
		}
		if err := tx.Where("habit_id = ?", habitID).Delete(&models.HabitLog{}).Error; err != nil {
			return fmt.Errorf("delete habit logs: %w", err)
		}
		if err := tx.Where("id = ?", habitID).Delete(&models.Habit{}).Error; err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
}

// CompleteHabit logs a completion, advances the streak and awards the
// habit's XP in one transaction.
func (s *HabitService) CompleteHabit(ctx context.Context, userID, habitID string, in CompleteHabitInput) (*CompletionResult, error) {
	count := in.Count
	if count == 0 {
		count = 1
	}
	if count < 1 {
		return nil, validationError("count must be at least 1")
	}

	now := s.now()
	var (
		result CompletionResult
		award  XPAward
		habit  *models.Habit
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		habit, err = s.loadOwned(tx, userID, habitID, true)
		if err != nil {
			return err
		}

		log := models.HabitLog{
			ID:          uuid.NewString(),
			HabitID:     habit.ID,
			UserID:      userID,
			Count:       count,
			Notes:       in.Notes,
			CompletedAt: now,
		}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("create habit log: %w", err)
		}

		streak := NextStreak(habit.Frequency, habit.Streak, habit.LastCompletedAt, now, s.Location)
		longest := habit.LongestStreak
		if streak > longest {
			longest = streak
		}
		if err := tx.Model(&models.Habit{}).Where("id = ?", habit.ID).Updates(map[string]any{
			"streak":            streak,
			"longest_streak":    longest,
			"last_completed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("update streak: %w", err)
		}

		xp := habit.XPValue
		if xp <= 0 {
			xp = models.DefaultHabitXP
		}
		award, err = s.Progression.AwardXP(tx, userID, xp, models.XPSourceHabit, habit.ID, habit.Title)
		if err != nil {
			return err
		}

		var progress int64
		if err := tx.Model(&models.HabitLog{}).
			Where("habit_id = ? AND completed_at >= ?", habit.ID, PeriodStart(habit.Frequency, now, s.Location)).
			Select("COALESCE(SUM(count), 0)").Scan(&progress).Error; err != nil {
			return fmt.Errorf("sum habit progress: %w", err)
		}

		result = CompletionResult{
			Logged:        true,
			LeveledUp:     award.LeveledUp,
			NewLevel:      award.NewLevel,
			XPGained:      award.XPGained,
			Streak:        streak,
			TodayProgress: int(progress),
			Log:           log,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Progression.Committed(ctx, award)
	s.Progression.publish(events.New(events.HabitCompleted, userID, map[string]any{
		"habit_id":       habit.ID,
		"title":          habit.Title,
		"streak":         result.Streak,
		"xp_gained":      result.XPGained,
		"today_progress": result.TodayProgress,
	}))

	streak := result.Streak
	result.Unlocked = s.checkAchievements(ctx, userID, CheckContext{Streak: &streak, CompletedAt: &now})
	return &result, nil
}

func (s *HabitService) ListLogs(ctx context.Context, userID, habitID string, limit int) ([]models.HabitLog, error) {
	if _, err := s.loadOwned(s.DB.WithContext(ctx), userID, habitID, false); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.HabitLog
	if err := s.DB.WithContext(ctx).
		Where("habit_id = ?", habitID).
		Order("completed_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	return logs, nil
}

// ResetMissedStreaks zeroes the streak of every habit that missed a whole
// period. Returns the number of habits reset.
func (s *HabitService) ResetMissedStreaks(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64
	for _, freq := range []models.Frequency{models.FrequencyDaily, models.FrequencyWeekly} {
		res := s.DB.WithContext(ctx).Model(&models.Habit{}).
			Where("frequency = ? AND streak > 0 AND last_completed_at < ?", freq, StreakCutoff(freq, now, s.Location)).
			Update("streak", 0)
		if res.Error != nil {
			return total, fmt.Errorf("reset %s streaks: %w", freq, res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (s *HabitService) loadOwned(db *gorm.DB, userID, habitID string, lock bool) (*models.Habit, error) {
	if _, err := uuid.Parse(habitID); err != nil {
		return nil, notFound("habit")
	}
	q := db
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var habit models.Habit
	if err := q.Where("id = ? AND user_id = ?", habitID, userID).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("habit")
		}
		return nil, fmt.Errorf("load habit: %w", err)
	}
	return &habit, nil
}

func (s *HabitService) checkAchievements(ctx context.Context, userID string, cc CheckContext) []models.Achievement {
	if s.Achievements == nil {
		return nil
	}
	unlocked, err := s.Achievements.Check(ctx, userID, cc)
	if err != nil {
		utils.Logger.Warn("achievement_check_failed", zap.String("user_id", userID), zap.Error(err))
	}
	return unlocked
}

// periodProgress holds per-habit log sums for the current day and ISO week.
type periodProgress struct {
	daily  map[string]int
	weekly map[string]int
}

func (p periodProgress) of(habitID string, freq models.Frequency) int {
	if freq == models.FrequencyWeekly {
		return p.weekly[habitID]
	}
	return p.daily[habitID]
}

func habitProgress(ctx context.Context, db *gorm.DB, userID string, now time.Time, loc *time.Location) (periodProgress, error) {
	type row struct {
		HabitID string
		Total   int
	}
	sums := func(since time.Time) (map[string]int, error) {
		var rows []row
		if err := db.WithContext(ctx).Model(&models.HabitLog{}).
			Select("habit_id, COALESCE(SUM(count), 0) AS total").
			Where("user_id = ? AND completed_at >= ?", userID, since).
			Group("habit_id").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("sum habit logs: %w", err)
		}
		out := make(map[string]int, len(rows))
		for _, r := range rows {
			out[r.HabitID] = r.Total
		}
		return out, nil
	}

	daily, err := sums(PeriodStart(models.FrequencyDaily, now, loc))
	if err != nil {
		return periodProgress{}, err
	}
	weekly, err := sums(PeriodStart(models.FrequencyWeekly, now, loc))
	if err != nil {
		return periodProgress{}, err
	}
	return periodProgress{daily: daily, weekly: weekly}, nil
}
