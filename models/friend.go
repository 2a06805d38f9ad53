package models

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest lifecycle: pending → accepted | rejected (terminal).
type FriendRequest struct {
	ID          string              `gorm:"primaryKey;type:uuid" json:"id"`
	SenderID    string              `gorm:"type:uuid;index;not null" json:"sender_id"`
	ReceiverID  string              `gorm:"type:uuid;index;not null" json:"receiver_id"`
	Status      FriendRequestStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`

	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`

	Timestamps
}

// Friendship is one row per unordered pair; UserAID < UserBID always.
type Friendship struct {
	UserAID   string    `gorm:"primaryKey;type:uuid" json:"user_a_id"`
	UserBID   string    `gorm:"primaryKey;type:uuid;index" json:"user_b_id"`
	RequestID *string   `gorm:"type:uuid" json:"request_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// NewFriendship orders the pair so that (a,b) and (b,a) map to the same row.
func NewFriendship(userID, friendID string) Friendship {
	if userID > friendID {
		userID, friendID = friendID, userID
	}
	return Friendship{UserAID: userID, UserBID: friendID}
}

// Other returns the member of the pair that is not userID.
func (f Friendship) Other(userID string) string {
	if f.UserAID == userID {
		return f.UserBID
	}
	return f.UserAID
}
