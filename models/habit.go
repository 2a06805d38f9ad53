package models

import "time"

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

const DefaultHabitXP = 10

// Habit is a recurring action a user wants to complete TargetCount times per period.
type Habit struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"type:uuid;index;not null" json:"user_id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Frequency   Frequency `gorm:"type:varchar(16);not null;default:'daily'" json:"frequency"`
	TargetCount int       `gorm:"not null;default:1" json:"target_count"`
	XPValue     int64     `gorm:"not null;default:10" json:"xp_value"`

	// Streak state
	Streak          int        `gorm:"not null;default:0" json:"streak"`
	LongestStreak   int        `gorm:"not null;default:0" json:"longest_streak"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`

	// Computed per request, not stored
	TodayProgress int `gorm:"-" json:"today_progress"`

	Timestamps
}

// HabitLog is one completion event. Append-only.
type HabitLog struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	HabitID     string    `gorm:"type:uuid;index;not null" json:"habit_id"`
	UserID      string    `gorm:"type:uuid;index;not null" json:"user_id"`
	Count       int       `gorm:"not null;default:1" json:"count"`
	Notes       *string   `gorm:"type:text" json:"notes,omitempty"`
	CompletedAt time.Time `gorm:"index;not null" json:"completed_at"`
}
