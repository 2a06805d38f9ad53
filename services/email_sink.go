package services

import (
	"context"
	"fmt"

	"habitquest/events"
	"habitquest/models"
)

// Mailer sends one plain text email. *utils.Mailer implements it.
type Mailer interface {
	Send(to, subject, body string) error
}

type emailLookup interface {
	UserEmail(ctx context.Context, userID string) (string, error)
}

// EmailSink mails friend requests and unlocked achievements to users that
// have an email address on file.
type EmailSink struct {
	Users  emailLookup
	Mailer Mailer
}

func NewEmailSink(users *UserService, mailer Mailer) *EmailSink {
	return &EmailSink{Users: users, Mailer: mailer}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Handle(ctx context.Context, e events.Event) error {
	if e.Type != events.FriendRequestReceived && e.Type != events.AchievementUnlocked {
		return nil
	}
	title, body, ok := renderNotification(e)
	if !ok {
		return nil
	}
	to, err := s.Users.UserEmail(ctx, e.UserID)
	if err != nil {
		return err
	}
	if to == "" {
		return nil
	}
	if err := s.Mailer.Send(to, "HabitQuest: "+title, body); err != nil {
		return fmt.Errorf("email %s: %w", e.Type, err)
	}
	return nil
}

// UserEmail returns the address on file, empty when there is none.
func (s *UserService) UserEmail(ctx context.Context, userID string) (string, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Select("email").Where("id = ?", userID).Limit(1).Find(&user).Error
	if err != nil {
		return "", fmt.Errorf("load user email: %w", err)
	}
	return user.Email, nil
}
