package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"habitquest/models"
	"habitquest/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxAvatarBytes = 5 * 1024 * 1024

var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// AvatarStore is where avatar images end up. *utils.R2Storage implements it.
type AvatarStore interface {
	Upload(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

type UpdateProfileInput struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=50"`
	Username    *string `json:"username" validate:"omitempty,min=3,max=30"`
}

// UserProfile is what GET /users/:id returns.
type UserProfile struct {
	models.PublicUser
	LevelProgress int  `json:"level_progress"`
	IsFriend      bool `json:"is_friend"`
}

type UserService struct {
	DB      *gorm.DB
	Avatars AvatarStore
}

func NewUserService(db *gorm.DB, avatars AvatarStore) *UserService {
	return &UserService{DB: db, Avatars: avatars}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// GetPublicProfile is another user's profile as seen by viewerID.
func (s *UserService) GetPublicProfile(ctx context.Context, viewerID, userID string) (*UserProfile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, notFound("user")
	}
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	friends, err := areFriends(s.DB.WithContext(ctx), viewerID, userID)
	if err != nil {
		return nil, err
	}
	return &UserProfile{
		PublicUser:    user.Public(),
		LevelProgress: LevelProgressPercent(user.XP, user.Level),
		IsFriend:      friends,
	}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, validationError("display_name must not be empty")
		}
		updates["display_name"] = name
	}
	if in.Username != nil {
		username := slug.Make(*in.Username)
		if len(username) < 3 {
			return nil, validationError("username must have at least 3 letters or digits")
		}
		var taken int64
		if err := s.DB.WithContext(ctx).Model(&models.User{}).
			Where("username = ? AND id <> ?", username, userID).
			Count(&taken).Error; err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken > 0 {
			return nil, fmt.Errorf("%w: username %q is taken", ErrConflict, username)
		}
		updates["username"] = username
	}

	if len(updates) > 0 {
		res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("%w: username is taken", ErrConflict)
			}
			return nil, fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, notFound("user")
		}
	}
	return s.GetProfile(ctx, userID)
}

// SearchUsers finds users whose username, display name or name contains
// query, best matches first: exact, then prefix, then substring. The caller
// is excluded.
func (s *UserService) SearchUsers(ctx context.Context, callerID, query string, limit int) ([]models.PublicUser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PublicUser{}, nil
	}
	if len(query) > 100 {
		return nil, validationError("query is too long")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	pattern := likePattern(query)
	var candidates []models.User
	if err := s.DB.WithContext(ctx).
		Where("id <> ?", callerID).
		Where("username ILIKE ? OR display_name ILIKE ? OR name ILIKE ?", pattern, pattern, pattern).
		Order(matchClassOrder(query)).
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	ranked := RankSearchResults(query, candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]models.PublicUser, len(ranked))
	for i := range ranked {
		out[i] = ranked[i].Public()
	}
	return out, nil
}

// UploadAvatar stores an image and points the user's avatar_url at it.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, file *multipart.FileHeader) (*models.User, error) {
	if s.Avatars == nil {
		return nil, fmt.Errorf("%w: avatar storage is not configured", ErrStorageUnavailable)
	}
	if file == nil {
		return nil, validationError("avatar file is required")
	}
	if file.Size > maxAvatarBytes {
		return nil, validationError("avatar must be at most 5MB")
	}
	contentType := file.Header.Get("Content-Type")
	ext, ok := avatarTypes[contentType]
	if !ok {
		return nil, validationError("avatar must be png, jpeg or webp")
	}
	if e := strings.ToLower(filepath.Ext(file.Filename)); e == ".jpeg" {
		ext = e
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.NewString(), ext)
	url, err := s.Avatars.Upload(ctx, file, key)
	if err != nil {
		utils.Logger.Error("avatar_upload_failed", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).Update("avatar_url", url).Error; err != nil {
		return nil, fmt.Errorf("save avatar url: %w", err)
	}
	return s.GetProfile(ctx, userID)
}
