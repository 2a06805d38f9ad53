package models

import (
	"time"
)

type CriteriaType string

const (
	CriteriaStreak              CriteriaType = "STREAK"
	CriteriaCompletion          CriteriaType = "COMPLETION"
	CriteriaTotalHabits         CriteriaType = "TOTAL_HABITS"
	CriteriaTotalGoals          CriteriaType = "TOTAL_GOALS"
	CriteriaEarlyCompletion     CriteriaType = "EARLY_COMPLETION"
	CriteriaMilestoneCompletion CriteriaType = "MILESTONE_COMPLETION"
	CriteriaLevelReached        CriteriaType = "LEVEL_REACHED"
	CriteriaXPEarned            CriteriaType = "XP_EARNED"
)

// Criteria is stored as jsonb on the achievement row.
type Criteria struct {
	Type         CriteriaType `json:"type"`
	Threshold    int64        `json:"threshold"`
	Timeframe    string       `json:"timeframe,omitempty"`     // e.g. "daily"
	SpecificTime string       `json:"specific_time,omitempty"` // HH:MM
}

// Achievement: static catalog entry (seeded from DefaultAchievements)
type Achievement struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string   `gorm:"uniqueIndex;not null" json:"code"` // slug of Name, e.g. "early-bird"
	Name        string   `gorm:"not null" json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon,omitempty"`
	XPReward    int64    `gorm:"not null;default:0" json:"xp_reward"`
	Criteria    Criteria `gorm:"type:jsonb;serializer:json;not null" json:"criteria"`

	Timestamps
}

// UserAchievement: earned instance, at most one per (user, achievement)
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	EarnedAt      time.Time `gorm:"autoCreateTime" json:"earned_at"`

	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

// DefaultAchievements is the catalog upserted by `habitquest seed`. Codes are
// derived from names at seed time.
var DefaultAchievements = []Achievement{
	{Name: "First Step", Description: "Create your first habit", Icon: "👣", XPReward: 10,
		Criteria: Criteria{Type: CriteriaTotalHabits, Threshold: 1}},
	{Name: "Habit Builder", Description: "Track 5 habits", Icon: "🧱", XPReward: 50,
		Criteria: Criteria{Type: CriteriaTotalHabits, Threshold: 5}},
	{Name: "Goal Setter", Description: "Create your first goal", Icon: "🎯", XPReward: 10,
		Criteria: Criteria{Type: CriteriaTotalGoals, Threshold: 1}},
	{Name: "Visionary", Description: "Create 10 goals", Icon: "🔭", XPReward: 75,
		Criteria: Criteria{Type: CriteriaTotalGoals, Threshold: 10}},
	{Name: "On Fire", Description: "Reach a 3 day streak", Icon: "🔥", XPReward: 25,
		Criteria: Criteria{Type: CriteriaStreak, Threshold: 3}},
	{Name: "Week Warrior", Description: "Reach a 7 day streak", Icon: "⚔️", XPReward: 75,
		Criteria: Criteria{Type: CriteriaStreak, Threshold: 7}},
	{Name: "Unstoppable", Description: "Reach a 30 day streak", Icon: "🚀", XPReward: 300,
		Criteria: Criteria{Type: CriteriaStreak, Threshold: 30}},
	{Name: "Perfect Day", Description: "Complete every habit in one day", Icon: "🌟", XPReward: 50,
		Criteria: Criteria{Type: CriteriaCompletion, Threshold: 100, Timeframe: "daily"}},
	{Name: "Early Bird", Description: "Complete a habit before 07:00", Icon: "🐦", XPReward: 30,
		Criteria: Criteria{Type: CriteriaEarlyCompletion, Threshold: 1, SpecificTime: "07:00"}},
	{Name: "Milestone Maker", Description: "Complete 10 milestones", Icon: "🪜", XPReward: 60,
		Criteria: Criteria{Type: CriteriaMilestoneCompletion, Threshold: 10}},
	{Name: "Rising Star", Description: "Reach level 5", Icon: "⭐", XPReward: 50,
		Criteria: Criteria{Type: CriteriaLevelReached, Threshold: 5}},
	{Name: "Veteran", Description: "Reach level 10", Icon: "🏅", XPReward: 150,
		Criteria: Criteria{Type: CriteriaLevelReached, Threshold: 10}},
	{Name: "XP Collector", Description: "Earn 1000 XP", Icon: "💎", XPReward: 100,
		Criteria: Criteria{Type: CriteriaXPEarned, Threshold: 1000}},
}
