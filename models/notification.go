package models

import "time"

// Notification is a persisted, user-visible event.
type Notification struct {
	ID      string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string     `gorm:"type:uuid;index;not null" json:"user_id"`
	Type    string     `gorm:"type:varchar(48);not null" json:"type"`
	Title   string     `gorm:"not null" json:"title"`
	Body    string     `gorm:"type:text" json:"body"`
	Payload JSONMap    `gorm:"type:jsonb;serializer:json" json:"payload,omitempty"`
	ReadAt  *time.Time `gorm:"index" json:"read_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

type JSONMap map[string]any
