package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"habitquest/models"
	"habitquest/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const profileSyncPageSize = 200

// RemoteProfile is the part of the auth provider's admin user object we mirror.
type RemoteProfile struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	UpdatedAt    time.Time    `json:"updated_at"`
	UserMetadata userMetadata `json:"user_metadata"`
}

type userMetadata struct {
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Name prefers the explicit name and falls back to full_name.
func (p RemoteProfile) Name() string {
	if n := strings.TrimSpace(p.UserMetadata.Name); n != "" {
		return n
	}
	return strings.TrimSpace(p.UserMetadata.FullName)
}

type listUsersResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors profile fields from the auth provider into users
// that already exist locally. Local edits to display name and avatar win.
type ProfileSyncWorker struct {
	db         *gorm.DB
	interval   time.Duration
	baseURL    string
	path       string
	serviceKey string
	httpClient *http.Client
	since      time.Time
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, path, serviceKey string, interval time.Duration) *ProfileSyncWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ProfileSyncWorker{
		db:         db,
		interval:   interval,
		baseURL:    baseURL,
		path:       path,
		serviceKey: serviceKey,
		httpClient: utils.HTTPClient,
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	utils.Logger.Info("profile_sync_started", zap.Duration("interval", w.interval))
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if err := w.SyncOnce(ctx); err != nil {
		utils.Logger.Warn("profile_sync_failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				utils.Logger.Warn("profile_sync_failed", zap.Error(err))
			}
		case <-ctx.Done():
			utils.Logger.Info("profile_sync_stopped")
			return
		}
	}
}

// SyncOnce pulls every profile changed since the previous run and applies it.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) error {
	changed, latest, err := w.FetchChanged(ctx, w.since)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}

	var updated, failed int
	for _, p := range changed {
		n, err := w.apply(ctx, p)
		if err != nil {
			failed++
			utils.Logger.Warn("profile_sync_upsert_failed", zap.String("user_id", p.ID), zap.Error(err))
			continue
		}
		updated += int(n)
	}
	// Retry the whole window next time if anything failed.
	if failed == 0 {
		w.since = latest
	}
	utils.Logger.Info("profile_sync_done",
		zap.Int("changed", len(changed)),
		zap.Int("updated", updated),
		zap.Int("failed", failed),
	)
	return nil
}

// FetchChanged pages through the provider's user list and keeps profiles
// updated after since. latest is the newest updated_at seen.
func (w *ProfileSyncWorker) FetchChanged(ctx context.Context, since time.Time) ([]RemoteProfile, time.Time, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil || w.baseURL == "" {
		return nil, since, fmt.Errorf("invalid auth provider URL %q", w.baseURL)
	}
	endpoint := base.JoinPath(w.path)

	latest := since
	var changed []RemoteProfile
	for page := 1; ; page++ {
		q := endpoint.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(profileSyncPageSize))
		endpoint.RawQuery = q.Encode()

		users, err := w.fetchPage(ctx, endpoint.String())
		if err != nil {
			return nil, since, err
		}
		for _, u := range users {
			if !u.UpdatedAt.After(since) {
				continue
			}
			changed = append(changed, u)
			if u.UpdatedAt.After(latest) {
				latest = u.UpdatedAt
			}
		}
		if len(users) < profileSyncPageSize {
			return changed, latest, nil
		}
	}
}

func (w *ProfileSyncWorker) fetchPage(ctx context.Context, target string) ([]RemoteProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request to %s: %w", target, err)
	}
	req.Header.Set("apikey", w.serviceKey)
	req.Header.Set("Authorization", "Bearer "+w.serviceKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth provider request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("auth provider returned %d: %s", resp.StatusCode, string(body))
	}

	var out listUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode user list: %w", err)
	}
	return out.Users, nil
}

// apply updates the local row, filling display name and avatar only when
// they are still empty locally.
func (w *ProfileSyncWorker) apply(ctx context.Context, p RemoteProfile) (int64, error) {
	now := time.Now()
	updates := map[string]any{
		"email":             p.Email,
		"profile_synced_at": now,
	}
	if name := p.Name(); name != "" {
		updates["name"] = name
	}
	if dn := strings.TrimSpace(p.UserMetadata.DisplayName); dn != "" {
		updates["display_name"] = gorm.Expr("COALESCE(NULLIF(display_name, ''), ?)", dn)
	}
	if avatar := strings.TrimSpace(p.UserMetadata.AvatarURL); avatar != "" {
		updates["avatar_url"] = gorm.Expr("COALESCE(avatar_url, ?)", avatar)
	}

	res := w.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", p.ID).Updates(updates)
	return res.RowsAffected, res.Error
}
