package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habitquest/events"
	"habitquest/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationService persists user-visible events. It is registered on the
// bus as a sink.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (s *NotificationService) Name() string { return "notifications" }

func (s *NotificationService) Handle(ctx context.Context, e events.Event) error {
	title, body, ok := renderNotification(e)
	if !ok {
		return nil
	}
	n := models.Notification{
		ID:      uuid.NewString(),
		UserID:  e.UserID,
		Type:    string(e.Type),
		Title:   title,
		Body:    body,
		Payload: models.JSONMap(e.Payload),
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// renderNotification returns the text shown for e. Events that are not
// worth a notification return ok=false.
func renderNotification(e events.Event) (title, body string, ok bool) {
	p := e.Payload
	switch e.Type {
	case events.LevelUp:
		return "Level up!", fmt.Sprintf("You reached level %v.", p["new_level"]), true
	case events.AchievementUnlocked:
		return "Achievement unlocked", fmt.Sprintf("%v %v (+%v XP)", p["icon"], p["name"], p["xp_reward"]), true
	case events.GoalCompleted:
		return "Goal completed", fmt.Sprintf("You completed a goal and earned %v XP.", p["xp_gained"]), true
	case events.FriendRequestReceived:
		return "New friend request", "Someone wants to be your friend.", true
	case events.FriendRequestAccepted:
		return "Friend request accepted", "Your friend request was accepted.", true
	}
	return "", "", false
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound("notification")
	}
	var n models.Notification
	if err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("notification")
		}
		return fmt.Errorf("load notification: %w", err)
	}
	if n.ReadAt != nil {
		return nil
	}
	if err := s.DB.WithContext(ctx).Model(&n).Update("read_at", time.Now()).Error; err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now())
	if res.Error != nil {
		return 0, fmt.Errorf("mark notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
