package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habitquest/cache"
	"habitquest/events"
	"habitquest/models"
	"habitquest/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// XPAward is what one AwardXP call changed. Callers hand it back to
// Committed once their transaction succeeds.
type XPAward struct {
	UserID string          `json:"user_id"`
	Source models.XPSource `json:"source"`
	LevelResult
}

// Progress is the caller's XP summary.
type Progress struct {
	UserID          string     `json:"user_id"`
	XP              int64      `json:"xp"`
	Level           int        `json:"level"`
	LevelProgress   int        `json:"level_progress"`
	XPIntoLevel     int64      `json:"xp_into_level"`
	XPForNextLevel  int64      `json:"xp_for_next_level"`
	NextLevelAt     int64      `json:"next_level_at"`
	LastLevelUpAt   *time.Time `json:"last_level_up_at,omitempty"`
	AchievementsWon int64      `json:"achievements_won"`
}

type ProgressionService struct {
	DB     *gorm.DB
	Cache  cache.Store
	Events events.Publisher
}

func NewProgressionService(db *gorm.DB, store cache.Store, bus events.Publisher) *ProgressionService {
	if store == nil {
		store = cache.Noop{}
	}
	return &ProgressionService{DB: db, Cache: store, Events: bus}
}

// EnsureUser creates the local user row on first authenticated access (idempotent).
func (s *ProgressionService) EnsureUser(ctx context.Context, userID, email string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		user = models.User{
			ID:       userID,
			Username: defaultUsername(userID, email, attempt),
			Email:    email,
			XP:       0,
			Level:    1,
		}
		res := s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
			Create(&user)
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			utils.Logger.Info("username_taken", zap.String("user_id", userID), zap.String("username", user.Username))
			continue
		}
		if res.Error != nil {
			return nil, fmt.Errorf("create user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Created concurrently by another request.
			if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
				return nil, fmt.Errorf("load user: %w", err)
			}
			return &user, nil
		}
		utils.Logger.Info("user_created", zap.String("user_id", userID), zap.String("username", user.Username))
		return &user, nil
	}
	return nil, fmt.Errorf("%w: no free username for user %s", ErrConflict, userID)
}

const maxUsernameAttempts = 5

// defaultUsername derives a handle from the email local part. The first
// attempt uses six hex digits of the id, the second the full id and later
// ones a random suffix.
func defaultUsername(userID, email string, attempt int) string {
	local, _, _ := strings.Cut(email, "@")
	base := slug.Make(local)
	if base == "" {
		base = "user"
	}
	suffix := strings.ReplaceAll(userID, "-", "")
	switch {
	case attempt == 0 && len(suffix) > 6:
		suffix = suffix[:6]
	case attempt > 1:
		suffix = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return base + "-" + suffix
}

// AwardXP adds amount to the user's XP inside tx, recomputes the level and
// writes an XPEvent. The row is locked for the duration of tx.
// A zero amount is a no-op.
func (s *ProgressionService) AwardXP(tx *gorm.DB, userID string, amount int64, source models.XPSource, refID, reason string) (XPAward, error) {
	if amount < 0 {
		return XPAward{}, validationError("xp amount must not be negative")
	}

	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return XPAward{}, notFound("user")
		}
		return XPAward{}, fmt.Errorf("lock user: %w", err)
	}

	result := AwardXP(user.XP, user.Level, amount)
	award := XPAward{UserID: userID, Source: source, LevelResult: result}
	if amount == 0 {
		return award, nil
	}

	updates := map[string]any{"xp": result.NewXP, "level": result.NewLevel}
	if result.LeveledUp {
		updates["last_level_up_at"] = time.Now()
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return XPAward{}, fmt.Errorf("update user xp: %w", err)
	}

	ledger := models.XPEvent{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Source:      source,
		ReferenceID: refID,
		Reason:      reason,
		LevelBefore: result.PreviousLevel,
		LevelAfter:  result.NewLevel,
	}
	if err := tx.Create(&ledger).Error; err != nil {
		return XPAward{}, fmt.Errorf("write xp event: %w", err)
	}
	return award, nil
}

// Committed runs the side effects of awards whose transaction has committed:
// metrics, leaderboard invalidation and level.up events.
func (s *ProgressionService) Committed(ctx context.Context, awards ...XPAward) {
	invalidate := false
	for _, a := range awards {
		if a.XPGained == 0 {
			continue
		}
		invalidate = true
		utils.XPAwarded.WithLabelValues(string(a.Source)).Add(float64(a.XPGained))
		utils.Logger.Info("xp_awarded",
			zap.String("user_id", a.UserID),
			zap.String("source", string(a.Source)),
			zap.Int64("amount", a.XPGained),
			zap.Int64("xp", a.NewXP),
			zap.Int("level", a.NewLevel),
		)
		if a.LeveledUp {
			utils.LevelUps.Inc()
			s.publish(events.New(events.LevelUp, a.UserID, map[string]any{
				"previous_level": a.PreviousLevel,
				"new_level":      a.NewLevel,
				"xp":             a.NewXP,
			}))
		}
	}
	if invalidate {
		if err := s.Cache.DeletePattern(ctx, leaderboardCachePattern); err != nil {
			utils.Logger.Warn("leaderboard_cache_invalidate_failed", zap.Error(err))
		}
	}
}

// GrantXP is the admin path: its own transaction plus the post-commit effects.
func (s *ProgressionService) GrantXP(ctx context.Context, userID string, amount int64, reason string) (XPAward, error) {
	if amount <= 0 {
		return XPAward{}, validationError("xp must be positive")
	}
	var award XPAward
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		award, err = s.AwardXP(tx, userID, amount, models.XPSourceAdmin, "", reason)
		return err
	})
	if err != nil {
		return XPAward{}, err
	}
	s.Committed(ctx, award)
	return award, nil
}

func (s *ProgressionService) GetProgress(ctx context.Context, userID string) (*Progress, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	var won int64
	if err := s.DB.WithContext(ctx).Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).Count(&won).Error; err != nil {
		return nil, fmt.Errorf("count achievements: %w", err)
	}

	levelStart := TotalXPForLevel(user.Level)
	span := XPForLevel(user.Level)
	return &Progress{
		UserID:          user.ID,
		XP:              user.XP,
		Level:           user.Level,
		LevelProgress:   LevelProgressPercent(user.XP, user.Level),
		XPIntoLevel:     user.XP - levelStart,
		XPForNextLevel:  span,
		NextLevelAt:     levelStart + span,
		LastLevelUpAt:   user.LastLevelUpAt,
		AchievementsWon: won,
	}, nil
}

// XPHistory returns the user's ledger, newest first.
func (s *ProgressionService) XPHistory(ctx context.Context, userID string, page, size int) ([]models.XPEvent, int64, error) {
	page, size = normalizePage(page, size)

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.XPEvent{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count xp events: %w", err)
	}

	var rows []models.XPEvent
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list xp events: %w", err)
	}
	return rows, total, nil
}

func (s *ProgressionService) publish(e events.Event) {
	if s.Events != nil {
		s.Events.Publish(e)
	}
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
