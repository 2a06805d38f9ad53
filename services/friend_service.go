package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habitquest/events"
	"habitquest/models"
	"habitquest/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingRequests splits a user's open requests by direction.
type PendingRequests struct {
	Incoming []models.FriendRequest `json:"incoming"`
	Outgoing []models.FriendRequest `json:"outgoing"`
}

type Friend struct {
	models.PublicUser
	Since time.Time `json:"since"`
}

type FriendService struct {
	DB     *gorm.DB
	Events events.Publisher
	now    func() time.Time
}

func NewFriendService(db *gorm.DB, bus events.Publisher) *FriendService {
	return &FriendService{DB: db, Events: bus, now: time.Now}
}

// SendFriendRequest creates a pending request from senderID to receiverID.
// A pending request in either direction or an existing friendship is a conflict.
func (s *FriendService) SendFriendRequest(ctx context.Context, senderID, receiverID string) (*models.FriendRequest, error) {
	if receiverID == "" {
		return nil, validationError("receiver_id is required")
	}
	if _, err := uuid.Parse(receiverID); err != nil {
		return nil, validationError("receiver_id must be a uuid")
	}
	if senderID == receiverID {
		return nil, validationError("cannot send a friend request to yourself")
	}

	var req models.FriendRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var receiver models.User
		if err := tx.Select("id").Where("id = ?", receiverID).First(&receiver).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user")
			}
			return fmt.Errorf("load receiver: %w", err)
		}

		friends, err := areFriends(tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if friends {
			return fmt.Errorf("%w: already friends", ErrConflict)
		}

		var pending int64
		if err := tx.Model(&models.FriendRequest{}).
			Where("status = ?", models.FriendRequestPending).
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
				senderID, receiverID, receiverID, senderID).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("check pending requests: %w", err)
		}
		if pending > 0 {
			return fmt.Errorf("%w: a friend request is already pending", ErrConflict)
		}

		req = models.FriendRequest{
			ID:         uuid.NewString(),
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     models.FriendRequestPending,
		}
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: a friend request is already pending", ErrConflict)
			}
			return fmt.Errorf("create friend request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.FriendRequests.WithLabelValues(string(models.FriendRequestPending)).Inc()
	s.publish(events.New(events.FriendRequestReceived, receiverID, map[string]any{
		"request_id": req.ID,
		"sender_id":  senderID,
	}))
	return &req, nil
}

// RespondToFriendRequest accepts or rejects a pending request addressed to
// userID. Accepting creates the friendship in the same transaction.
func (s *FriendService) RespondToFriendRequest(ctx context.Context, requestID, userID string, accept bool) (*models.FriendRequest, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, notFound("friend request")
	}

	var req models.FriendRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND receiver_id = ?", requestID, userID).
			First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("friend request")
			}
			return fmt.Errorf("load friend request: %w", err)
		}
		if req.Status != models.FriendRequestPending {
			return ErrRequestNotPending
		}

		now := s.now()
		req.Status = models.FriendRequestRejected
		if accept {
			req.Status = models.FriendRequestAccepted
		}
		req.RespondedAt = &now
		if err := tx.Model(&models.FriendRequest{}).Where("id = ?", req.ID).Updates(map[string]any{
			"status":       req.Status,
			"responded_at": now,
		}).Error; err != nil {
			return fmt.Errorf("update friend request: %w", err)
		}

		if !accept {
			return nil
		}
		friendship := models.NewFriendship(req.SenderID, req.ReceiverID)
		friendship.RequestID = &req.ID
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&friendship).Error; err != nil {
			return fmt.Errorf("create friendship: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.FriendRequests.WithLabelValues(string(req.Status)).Inc()
	evt := events.FriendRequestRejected
	if accept {
		evt = events.FriendRequestAccepted
	}
	s.publish(events.New(evt, req.SenderID, map[string]any{
		"request_id":  req.ID,
		"receiver_id": req.ReceiverID,
	}))
	utils.Logger.Info("friend_request_answered",
		zap.String("request_id", req.ID),
		zap.String("status", string(req.Status)),
	)
	return &req, nil
}

// CancelFriendRequest deletes senderID's own pending request.
func (s *FriendService) CancelFriendRequest(ctx context.Context, requestID, senderID string) error {
	if _, err := uuid.Parse(requestID); err != nil {
		return notFound("friend request")
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.FriendRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND sender_id = ?", requestID, senderID).
			First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("friend request")
			}
			return fmt.Errorf("load friend request: %w", err)
		}
		if req.Status != models.FriendRequestPending {
			return ErrRequestNotPending
		}
		if err := tx.Delete(&req).Error; err != nil {
			return fmt.Errorf("delete friend request: %w", err)
		}
		return nil
	})
}

func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if _, err := uuid.Parse(friendID); err != nil {
		return notFound("friendship")
	}
	pair := models.NewFriendship(userID, friendID)
	res := s.DB.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", pair.UserAID, pair.UserBID).
		Delete(&models.Friendship{})
	if res.Error != nil {
		return fmt.Errorf("delete friendship: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("friendship")
	}
	s.publish(events.New(events.FriendshipRemoved, friendID, map[string]any{"user_id": userID}))
	return nil
}

// ListFriends returns the other member of every friendship userID is in.
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	var rows []models.Friendship
	if err := s.DB.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	if len(rows) == 0 {
		return []Friend{}, nil
	}

	since := make(map[string]time.Time, len(rows))
	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		other := f.Other(userID)
		since[other] = f.CreatedAt
		ids = append(ids, other)
	}

	var users []models.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).
		Order("display_name ASC, username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	out := make([]Friend, 0, len(users))
	for i := range users {
		out = append(out, Friend{PublicUser: users[i].Public(), Since: since[users[i].ID]})
	}
	return out, nil
}

func (s *FriendService) ListPendingRequests(ctx context.Context, userID string) (*PendingRequests, error) {
	out := &PendingRequests{Incoming: []models.FriendRequest{}, Outgoing: []models.FriendRequest{}}
	db := s.DB.WithContext(ctx)
	if err := db.Preload("Sender").
		Where("receiver_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at DESC").Find(&out.Incoming).Error; err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	if err := db.Preload("Receiver").
		Where("sender_id = ? AND status = ?", userID, models.FriendRequestPending).
		Order("created_at DESC").Find(&out.Outgoing).Error; err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}
	return out, nil
}

func (s *FriendService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return areFriends(s.DB.WithContext(ctx), a, b)
}

func areFriends(db *gorm.DB, a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	pair := models.NewFriendship(a, b)
	var n int64
	if err := db.Model(&models.Friendship{}).
		Where("user_a_id = ? AND user_b_id = ?", pair.UserAID, pair.UserBID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return n > 0, nil
}

func friendIDs(db *gorm.DB, userID string) ([]string, error) {
	var rows []models.Friendship
	if err := db.Where("user_a_id = ? OR user_b_id = ?", userID, userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.Other(userID))
	}
	return ids, nil
}

func (s *FriendService) publish(e events.Event) {
	if s.Events != nil {
		s.Events.Publish(e)
	}
}
