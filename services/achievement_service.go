package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"habitquest/events"
	"habitquest/models"
	"habitquest/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxConcurrentAwards bounds the award transactions one Check runs at once.
const maxConcurrentAwards = 4

// AchievementStatus is a catalog entry as seen by one user.
type AchievementStatus struct {
	models.Achievement
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

type AchievementService struct {
	DB          *gorm.DB
	Progression *ProgressionService
	Location    *time.Location
	now         func() time.Time
}

func NewAchievementService(db *gorm.DB, progression *ProgressionService, loc *time.Location) *AchievementService {
	if loc == nil {
		loc = time.UTC
	}
	return &AchievementService{DB: db, Progression: progression, Location: loc, now: time.Now}
}

// Check evaluates every achievement the user has not earned yet against one
// stats snapshot and awards the eligible ones. Awards made during the pass
// do not feed back into eligibility.
func (s *AchievementService) Check(ctx context.Context, userID string, cc CheckContext) ([]models.Achievement, error) {
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []models.Achievement
	earned := s.DB.Model(&models.UserAchievement{}).Select("achievement_id").Where("user_id = ?", userID)
	if err := s.DB.WithContext(ctx).
		Where("id NOT IN (?)", earned).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("load unearned achievements: %w", err)
	}

	var (
		mu       sync.Mutex
		unlocked []models.Achievement
		awards   []XPAward
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAwards)
	for _, a := range candidates {
		a := a
		g.Go(func() error {
			if !IsEligible(a.Criteria, stats, cc, s.Location) {
				return nil
			}
			award, inserted, err := s.award(gctx, userID, a)
			if err != nil {
				return fmt.Errorf("award %s: %w", a.Code, err)
			}
			if !inserted {
				return nil
			}
			mu.Lock()
			unlocked = append(unlocked, a)
			awards = append(awards, award)
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()

	// Awards that committed before a failure still get their side effects.
	s.Progression.Committed(ctx, awards...)
	for _, a := range unlocked {
		utils.AchievementsUnlocked.WithLabelValues(a.Code).Inc()
		utils.Logger.Info("achievement_unlocked",
			zap.String("user_id", userID),
			zap.String("code", a.Code),
			zap.Int64("xp_reward", a.XPReward),
		)
		s.Progression.publish(events.New(events.AchievementUnlocked, userID, map[string]any{
			"achievement_id": a.ID,
			"code":           a.Code,
			"name":           a.Name,
			"icon":           a.Icon,
			"xp_reward":      a.XPReward,
		}))
	}
	sort.Slice(unlocked, func(i, j int) bool { return unlocked[i].Name < unlocked[j].Name })
	return unlocked, waitErr
}

// award inserts the UserAchievement and grants the reward in one
// transaction. inserted is false when the row already existed.
func (s *AchievementService) award(ctx context.Context, userID string, a models.Achievement) (XPAward, bool, error) {
	var (
		award    XPAward
		inserted bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ua := models.UserAchievement{
			ID:            uuid.NewString(),
			UserID:        userID,
			AchievementID: a.ID,
			EarnedAt:      s.now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ua)
		if res.Error != nil {
			return fmt.Errorf("insert user achievement: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true

		var err error
		award, err = s.Progression.AwardXP(tx, userID, a.XPReward, models.XPSourceAchievement, a.ID, a.Name)
		return err
	})
	if err != nil {
		return XPAward{}, false, err
	}
	return award, inserted, nil
}

// Stats loads the aggregates achievement criteria are evaluated against.
func (s *AchievementService) Stats(ctx context.Context, userID string) (UserStats, error) {
	db := s.DB.WithContext(ctx)

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserStats{}, notFound("user")
		}
		return UserStats{}, fmt.Errorf("load user: %w", err)
	}
	stats := UserStats{XP: user.XP, Level: user.Level}

	var habits []models.Habit
	if err := db.Select("id", "frequency", "target_count", "streak").
		Where("user_id = ?", userID).Find(&habits).Error; err != nil {
		return UserStats{}, fmt.Errorf("load habits: %w", err)
	}
	progress, err := habitProgress(ctx, s.DB, userID, s.now(), s.Location)
	if err != nil {
		return UserStats{}, err
	}
	stats.TotalHabits = int64(len(habits))
	for _, h := range habits {
		if h.Streak > stats.BestStreak {
			stats.BestStreak = h.Streak
		}
		if progress.of(h.ID, h.Frequency) >= h.TargetCount {
			stats.CompletedHabits++
		}
	}

	if err := db.Model(&models.Goal{}).Where("user_id = ?", userID).
		Count(&stats.TotalGoals).Error; err != nil {
		return UserStats{}, fmt.Errorf("count goals: %w", err)
	}
	if err := db.Model(&models.Milestone{}).
		Joins("JOIN goals ON goals.id = milestones.goal_id").
		Where("goals.user_id = ? AND milestones.is_completed = ?", userID, true).
		Count(&stats.CompletedMilestones).Error; err != nil {
		return UserStats{}, fmt.Errorf("count milestones: %w", err)
	}
	return stats, nil
}

// ListForUser returns the whole catalog with the user's earned flags.
func (s *AchievementService) ListForUser(ctx context.Context, userID string) ([]AchievementStatus, error) {
	var catalog []models.Achievement
	if err := s.DB.WithContext(ctx).Order("xp_reward ASC, name ASC").Find(&catalog).Error; err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}

	var earned []models.UserAchievement
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&earned).Error; err != nil {
		return nil, fmt.Errorf("load user achievements: %w", err)
	}
	earnedAt := make(map[string]time.Time, len(earned))
	for _, ua := range earned {
		earnedAt[ua.AchievementID] = ua.EarnedAt
	}

	out := make([]AchievementStatus, 0, len(catalog))
	for _, a := range catalog {
		st := AchievementStatus{Achievement: a}
		if t, ok := earnedAt[a.ID]; ok {
			st.Earned = true
			st.EarnedAt = &t
		}
		out = append(out, st)
	}
	return out, nil
}

// SeedCatalog upserts the given achievements keyed by the slug of their
// name. Returns how many rows were written.
func (s *AchievementService) SeedCatalog(ctx context.Context, catalog []models.Achievement) (int, error) {
	rows := make([]models.Achievement, 0, len(catalog))
	for _, a := range catalog {
		a.ID = uuid.NewString()
		a.Code = slug.Make(a.Name)
		if a.Code == "" {
			return 0, validationError("achievement %q has no usable name", a.Name)
		}
		rows = append(rows, a)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "xp_reward", "criteria", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("seed achievements: %w", err)
	}
	utils.Logger.Info("achievements_seeded", zap.Int("count", len(rows)))
	return len(rows), nil
}
