package models

import (
	"fmt"

	"gorm.io/gorm"
)

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Habit{},
		&HabitLog{},
		&Goal{},
		&Milestone{},
		&Achievement{},
		&UserAchievement{},
		&FriendRequest{},
		&Friendship{},
		&XPEvent{},
		&Notification{},
		&Feedback{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	// At most one pending request per unordered pair.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_friend_requests_pending_pair
		ON friend_requests (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id))
		WHERE status = 'pending'`).Error; err != nil {
		return fmt.Errorf("create pending pair index: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_habit_logs_user_completed
		ON habit_logs (user_id, completed_at)`).Error; err != nil {
		return fmt.Errorf("create habit log index: %w", err)
	}
	return nil
}
