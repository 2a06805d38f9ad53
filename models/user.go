package models

import (
	"time"
)

// User is the local profile and progression row for an account owned by the
// auth provider. The ID is the provider's user id (JWT "sub").
type User struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	Username    string  `gorm:"uniqueIndex;not null" json:"username"`
	Name        string  `json:"name"`
	DisplayName string  `gorm:"index" json:"display_name"`
	AvatarURL   *string `gorm:"type:text" json:"avatar_url,omitempty"`
	Email       string  `json:"email,omitempty"`

	// Progression
	XP            int64      `gorm:"default:0;not null;index" json:"xp"`
	Level         int        `gorm:"default:1;not null" json:"level"`
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	// Set by the profile sync worker
	ProfileSyncedAt *time.Time `json:"-"`

	Timestamps
}

// PublicUser is the subset of a user exposed to other users.
type PublicUser struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	XP          int64   `json:"xp"`
	Level       int     `json:"level"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		XP:          u.XP,
		Level:       u.Level,
	}
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
