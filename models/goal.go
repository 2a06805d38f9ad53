package models

import "time"

const (
	DefaultGoalXP      = 50
	DefaultMilestoneXP = 20
)

// Goal progress is derived from its milestones and written back here.
type Goal struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string     `gorm:"type:uuid;index;not null" json:"user_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Progress    int        `gorm:"not null;default:0" json:"progress"` // 0-100
	XPValue     int64      `gorm:"not null;default:50" json:"xp_value"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	XPAwardedAt *time.Time `json:"-"`

	Milestones []Milestone `gorm:"foreignKey:GoalID;constraint:OnDelete:CASCADE" json:"milestones,omitempty"`

	Timestamps
}

type Milestone struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	GoalID      string     `gorm:"type:uuid;index;not null" json:"goal_id"`
	Title       string     `gorm:"not null" json:"title"`
	IsCompleted bool       `gorm:"not null;default:false" json:"is_completed"`
	XPValue     int64      `gorm:"not null;default:20" json:"xp_value"`
	Position    int        `gorm:"not null;default:0" json:"position"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	XPAwardedAt *time.Time `json:"-"`

	Timestamps
}
