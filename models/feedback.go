package models

import "time"

type FeedbackCategory string

const (
	FeedbackBug   FeedbackCategory = "bug"
	FeedbackIdea  FeedbackCategory = "idea"
	FeedbackOther FeedbackCategory = "other"
)

type Feedback struct {
	ID        string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string           `gorm:"type:uuid;index;not null" json:"user_id"`
	Category  FeedbackCategory `gorm:"type:varchar(16);not null" json:"category"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
}
