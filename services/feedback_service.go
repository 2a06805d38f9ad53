package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"habitquest/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxFeedbackLength = 2000

type SubmitFeedbackInput struct {
	Category models.FeedbackCategory `json:"category" validate:"required,oneof=bug idea other"`
	Message  string                  `json:"message" validate:"required,max=2000"`
}

type FeedbackService struct {
	DB *gorm.DB
}

func NewFeedbackService(db *gorm.DB) *FeedbackService {
	return &FeedbackService{DB: db}
}

func (s *FeedbackService) SubmitFeedback(ctx context.Context, userID string, in SubmitFeedbackInput) (*models.Feedback, error) {
	switch in.Category {
	case models.FeedbackBug, models.FeedbackIdea, models.FeedbackOther:
	default:
		return nil, validationError("category must be bug, idea or other")
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, validationError("message is required")
	}
	if utf8.RuneCountInString(msg) > maxFeedbackLength {
		return nil, validationError("message must be at most %d characters", maxFeedbackLength)
	}

	fb := models.Feedback{
		ID:       uuid.NewString(),
		UserID:   userID,
		Category: in.Category,
		Message:  msg,
	}
	if err := s.DB.WithContext(ctx).Create(&fb).Error; err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}
	return &fb, nil
}
