package models

import "time"

type XPSource string

const (
	XPSourceHabit       XPSource = "habit"
	XPSourceMilestone   XPSource = "milestone"
	XPSourceGoal        XPSource = "goal"
	XPSourceAchievement XPSource = "achievement"
	XPSourceAdmin       XPSource = "admin"
)

// XPEvent is the ledger row written for every XP award.
type XPEvent struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Source      XPSource  `gorm:"type:varchar(16);not null" json:"source"`
	ReferenceID string    `gorm:"type:varchar(64)" json:"reference_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
