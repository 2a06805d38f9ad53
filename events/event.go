// Package events carries domain events from the services to connected
// clients (SSE) and to side-channel sinks (notifications, Kafka, email).
package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	HabitCompleted        Type = "habit.completed"
	LevelUp               Type = "level.up"
	GoalCompleted         Type = "goal.completed"
	AchievementUnlocked   Type = "achievement.unlocked"
	FriendRequestReceived Type = "friend_request.received"
	FriendRequestAccepted Type = "friend_request.accepted"
	FriendRequestRejected Type = "friend_request.rejected"
	FriendshipRemoved     Type = "friendship.removed"
)

// Event is addressed to a single user. Payload must be JSON-serializable.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	UserID    string         `json:"user_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func New(t Type, userID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
