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

// GoalProgress is round(100*completed/total), 0 for a goal without milestones.
func GoalProgress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	if completed < 0 {
		completed = 0
	}
	return (200*completed + total) / (2 * total)
}

// ShouldAwardGoalXP reports whether a progress change completes the goal for
// the first time.
func ShouldAwardGoalXP(oldProgress, newProgress int, alreadyAwarded bool) bool {
	return !alreadyAwarded && oldProgress < 100 && newProgress >= 100
}

type CreateMilestoneInput struct {
	Title   string `json:"title" validate:"required,max=200"`
	XPValue int64  `json:"xp_value" validate:"omitempty,min=1,max=1000"`
}

type CreateGoalInput struct {
	Title       string                 `json:"title" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=2000"`
	XPValue     int64                  `json:"xp_value" validate:"omitempty,min=1,max=5000"`
	TargetDate  *time.Time             `json:"target_date"`
	Milestones  []CreateMilestoneInput `json:"milestones" validate:"max=50,dive"`
}

// MilestoneResult describes the effect of a milestone change on its goal.
type MilestoneResult struct {
	Milestone     models.Milestone     `json:"milestone"`
	GoalProgress  int                  `json:"goal_progress"`
	GoalCompleted bool                 `json:"goal_completed"`
	XPGained      int64                `json:"xp_gained"`
	LeveledUp     bool                 `json:"leveled_up"`
	NewLevel      int                  `json:"new_level"`
	Unlocked      []models.Achievement `json:"unlocked_achievements,omitempty"`
}

type GoalService struct {
	DB           *gorm.DB
	Progression  *ProgressionService
	Achievements *AchievementService
	now          func() time.Time
}

func NewGoalService(db *gorm.DB, progression *ProgressionService, achievements *AchievementService) *GoalService {
	return &GoalService{DB: db, Progression: progression, Achievements: achievements, now: time.Now}
}

func (s *GoalService) CreateGoal(ctx context.Context, userID string, in CreateGoalInput) (*models.Goal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError("title is required")
	}
	xp := in.XPValue
	if xp <= 0 {
		xp = models.DefaultGoalXP
	}

	goal := models.Goal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		XPValue:     xp,
		TargetDate:  in.TargetDate,
	}
	for i, m := range in.Milestones {
		ms, err := newMilestone(goal.ID, m, i)
		if err != nil {
			return nil, err
		}
		goal.Milestones = append(goal.Milestones, ms)
	}

	// Milestones are created through the association.
	if err := s.DB.WithContext(ctx).Create(&goal).Error; err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}

	s.checkAchievements(ctx, userID)
	return &goal, nil
}

func newMilestone(goalID string, in CreateMilestoneInput, position int) (models.Milestone, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Milestone{}, validationError("milestone title is required")
	}
	xp := in.XPValue
	if xp <= 0 {
		xp = models.DefaultMilestoneXP
	}
	return models.Milestone{
		ID:       uuid.NewString(),
		GoalID:   goalID,
		Title:    title,
		XPValue:  xp,
		Position: position,
	}, nil
}

func (s *GoalService) ListGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	var goals []models.Goal
	if err := s.DB.WithContext(ctx).
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

func (s *GoalService) GetGoal(ctx context.Context, userID, goalID string) (*models.Goal, error) {
	goal, err := s.loadOwned(s.DB.WithContext(ctx), userID, goalID, false)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Where("goal_id = ?", goal.ID).
		Order("position ASC, created_at ASC").Find(&goal.Milestones).Error; err != nil {
		return nil, fmt.Errorf("load milestones: %w", err)
	}
	return goal, nil
}

func (s *GoalService) DeleteGoal(ctx context.Context, userID, goalID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadOwned(tx, userID, goalID, true); err != nil {
			return err
		}
		if err := tx.Where("goal_id = ?", goalID).Delete(&models.Milestone{}).Error; err != nil {
			return fmt.Errorf("delete milestones: %w", err)
		}
		if err := tx.Where("id = ?", goalID).Delete(&models.Goal{}).Error; err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		return nil
	})
}

func (s *GoalService) AddMilestone(ctx context.Context, userID, goalID string, in CreateMilestoneInput) (*MilestoneResult, error) {
	var result MilestoneResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := s.loadOwned(tx, userID, goalID, true)
		if err != nil {
			return err
		}
		var maxPos int
		if err := tx.Model(&models.Milestone{}).Where("goal_id = ?", goalID).
			Select("COALESCE(MAX(position), -1)").Scan(&maxPos).Error; err != nil {
			return fmt.Errorf("read milestone position: %w", err)
		}
		ms, err := newMilestone(goalID, in, maxPos+1)
		if err != nil {
			return err
		}
		if err := tx.Create(&ms).Error; err != nil {
			return fmt.Errorf("create milestone: %w", err)
		}
		result.Milestone = ms
		// Adding a milestone can only lower progress, so no XP here.
		_, result.GoalProgress, err = s.syncProgress(tx, goal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *GoalService) DeleteMilestone(ctx context.Context, userID, goalID, milestoneID string) (*MilestoneResult, error) {
	var (
		result MilestoneResult
		awards []XPAward
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := s.loadOwned(tx, userID, goalID, true)
		if err != nil {
			return err
		}
		ms, err := loadMilestone(tx, goalID, milestoneID)
		if err != nil {
			return err
		}
		if err := tx.Delete(ms).Error; err != nil {
			return fmt.Errorf("delete milestone: %w", err)
		}
		result.Milestone = *ms
		awards, err = s.applyProgress(tx, goal, &result)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, userID, goalID, awards, &result)
	return &result, nil
}

// CompleteMilestone marks a milestone done, pays its XP once and pays the
// goal XP the first time the goal reaches 100%.
func (s *GoalService) CompleteMilestone(ctx context.Context, userID, goalID, milestoneID string) (*MilestoneResult, error) {
	var (
		result MilestoneResult
		awards []XPAward
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := s.loadOwned(tx, userID, goalID, true)
		if err != nil {
			return err
		}
		ms, err := loadMilestone(tx, goalID, milestoneID)
		if err != nil {
			return err
		}

		now := s.now()
		updates := map[string]any{}
		if !ms.IsCompleted {
			updates["is_completed"] = true
			updates["completed_at"] = now
			ms.IsCompleted = true
			ms.CompletedAt = &now
		}
		if ms.XPAwardedAt == nil {
			xp := ms.XPValue
			if xp <= 0 {
				xp = models.DefaultMilestoneXP
			}
			award, err := s.Progression.AwardXP(tx, userID, xp, models.XPSourceMilestone, ms.ID, ms.Title)
			if err != nil {
				return err
			}
			awards = append(awards, award)
			updates["xp_awarded_at"] = now
			ms.XPAwardedAt = &now
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Milestone{}).Where("id = ?", ms.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("update milestone: %w", err)
			}
		}
		result.Milestone = *ms

		goalAwards, err := s.applyProgress(tx, goal, &result)
		awards = append(awards, goalAwards...)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, userID, goalID, awards, &result)
	return &result, nil
}

// UncompleteMilestone reopens a milestone. XP already paid is kept.
func (s *GoalService) UncompleteMilestone(ctx context.Context, userID, goalID, milestoneID string) (*MilestoneResult, error) {
	var result MilestoneResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		goal, err := s.loadOwned(tx, userID, goalID, true)
		if err != nil {
			return err
		}
		ms, err := loadMilestone(tx, goalID, milestoneID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Milestone{}).Where("id = ?", ms.ID).Updates(map[string]any{
			"is_completed": false,
			"completed_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("update milestone: %w", err)
		}
		ms.IsCompleted = false
		ms.CompletedAt = nil
		result.Milestone = *ms

		_, err = s.applyProgress(tx, goal, &result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RecomputeGoalProgress writes the goal's progress from its milestones and
// returns the old and new values. It never awards XP.
func (s *GoalService) RecomputeGoalProgress(ctx context.Context, goalID string) (int, int, error) {
	var oldP, newP int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var goal models.Goal
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", goalID).First(&goal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("goal")
			}
			return fmt.Errorf("load goal: %w", err)
		}
		var err error
		oldP, newP, err = s.syncProgress(tx, &goal)
		return err
	})
	return oldP, newP, err
}

// syncProgress recomputes progress and keeps completed_at in step with it.
// It never pays XP.
func (s *GoalService) syncProgress(tx *gorm.DB, goal *models.Goal) (int, int, error) {
	oldP, newP, err := s.recompute(tx, goal)
	if err != nil {
		return 0, 0, err
	}
	if err := s.syncCompletedAt(tx, goal, newP, nil); err != nil {
		return 0, 0, err
	}
	return oldP, newP, nil
}

// syncCompletedAt sets completed_at when progress reaches 100 and clears it
// when progress drops. extra is written in the same update.
func (s *GoalService) syncCompletedAt(tx *gorm.DB, goal *models.Goal, progress int, extra map[string]any) error {
	updates := map[string]any{}
	for k, v := range extra {
		updates[k] = v
	}
	switch {
	case progress >= 100 && goal.CompletedAt == nil:
		now := s.now()
		updates["completed_at"] = now
		goal.CompletedAt = &now
	case progress < 100 && goal.CompletedAt != nil:
		updates["completed_at"] = nil
		goal.CompletedAt = nil
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&models.Goal{}).Where("id = ?", goal.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

// applyProgress recomputes progress and pays the goal XP on first completion.
func (s *GoalService) applyProgress(tx *gorm.DB, goal *models.Goal, result *MilestoneResult) ([]XPAward, error) {
	oldP, newP, err := s.recompute(tx, goal)
	if err != nil {
		return nil, err
	}
	result.GoalProgress = newP

	updates := map[string]any{}
	var awards []XPAward
	if ShouldAwardGoalXP(oldP, newP, goal.XPAwardedAt != nil) {
		xp := goal.XPValue
		if xp <= 0 {
			xp = models.DefaultGoalXP
		}
		award, err := s.Progression.AwardXP(tx, goal.UserID, xp, models.XPSourceGoal, goal.ID, goal.Title)
		if err != nil {
			return nil, err
		}
		awards = append(awards, award)
		updates["xp_awarded_at"] = s.now()
		result.GoalCompleted = true
	}
	if err := s.syncCompletedAt(tx, goal, newP, updates); err != nil {
		return nil, err
	}
	return awards, nil
}

func (s *GoalService) recompute(tx *gorm.DB, goal *models.Goal) (int, int, error) {
	var counts struct {
		Total     int
		Completed int
	}
	if err := tx.Model(&models.Milestone{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE is_completed) AS completed").
		Where("goal_id = ?", goal.ID).
		Scan(&counts).Error; err != nil {
		return 0, 0, fmt.Errorf("count milestones: %w", err)
	}

	oldP := goal.Progress
	newP := GoalProgress(counts.Completed, counts.Total)
	if newP != oldP {
		if err := tx.Model(&models.Goal{}).Where("id = ?", goal.ID).Update("progress", newP).Error; err != nil {
			return 0, 0, fmt.Errorf("update goal progress: %w", err)
		}
		goal.Progress = newP
	}
	return oldP, newP, nil
}

func (s *GoalService) afterCommit(ctx context.Context, userID, goalID string, awards []XPAward, result *MilestoneResult) {
	s.Progression.Committed(ctx, awards...)
	for _, a := range awards {
		result.XPGained += a.XPGained
		result.NewLevel = a.NewLevel
		result.LeveledUp = result.LeveledUp || a.LeveledUp
	}
	if result.GoalCompleted {
		s.Progression.publish(events.New(events.GoalCompleted, userID, map[string]any{
			"goal_id":   goalID,
			"xp_gained": result.XPGained,
		}))
	}
	result.Unlocked = s.checkAchievements(ctx, userID)
}

func (s *GoalService) checkAchievements(ctx context.Context, userID string) []models.Achievement {
	if s.Achievements == nil {
		return nil
	}
	unlocked, err := s.Achievements.Check(ctx, userID, CheckContext{})
	if err != nil {
		utils.Logger.Warn("achievement_check_failed", zap.String("user_id", userID), zap.Error(err))
	}
	return unlocked
}

func (s *GoalService) loadOwned(db *gorm.DB, userID, goalID string, lock bool) (*models.Goal, error) {
	if _, err := uuid.Parse(goalID); err != nil {
		return nil, notFound("goal")
	}
	q := db
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var goal models.Goal
	if err := q.Where("id = ? AND user_id = ?", goalID, userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("goal")
		}
		return nil, fmt.Errorf("load goal: %w", err)
	}
	return &goal, nil
}

func loadMilestone(tx *gorm.DB, goalID, milestoneID string) (*models.Milestone, error) {
	if _, err := uuid.Parse(milestoneID); err != nil {
		return nil, notFound("milestone")
	}
	var ms models.Milestone
	if err := tx.Where("id = ? AND goal_id = ?", milestoneID, goalID).First(&ms).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("milestone")
		}
		return nil, fmt.Errorf("load milestone: %w", err)
	}
	return &ms, nil
}
