package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"habitquest/cache"
	"habitquest/models"
	"habitquest/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	leaderboardCachePattern = "leaderboard:*"
	defaultGlobalLimit      = 50
)

type LeaderboardEntry struct {
	Rank int `json:"rank"`
	models.PublicUser
	IsSelf bool `json:"is_self,omitempty"`
}

type LeaderboardService struct {
	DB    *gorm.DB
	Cache cache.Store
	TTL   time.Duration
}

func NewLeaderboardService(db *gorm.DB, store cache.Store, ttl time.Duration) *LeaderboardService {
	if store == nil {
		store = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LeaderboardService{DB: db, Cache: store, TTL: ttl}
}

// RankEntries orders users by XP (ties by name) and assigns dense ranks
// starting at 1.
func RankEntries(users []models.User, selfID string) []LeaderboardEntry {
	sorted := make([]models.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].XP != sorted[j].XP {
			return sorted[i].XP > sorted[j].XP
		}
		return strings.ToLower(sortName(sorted[i])) < strings.ToLower(sortName(sorted[j]))
	})

	out := make([]LeaderboardEntry, 0, len(sorted))
	rank := 0
	for i := range sorted {
		if i == 0 || sorted[i].XP != sorted[i-1].XP {
			rank++
		}
		out = append(out, LeaderboardEntry{
			Rank:       rank,
			PublicUser: sorted[i].Public(),
			IsSelf:     sorted[i].ID == selfID,
		})
	}
	return out
}

func sortName(u models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Friends ranks userID together with their friends.
func (s *LeaderboardService) Friends(ctx context.Context, userID string) ([]LeaderboardEntry, error) {
	key := "leaderboard:friends:" + userID
	var cached []LeaderboardEntry
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	ids, err := friendIDs(s.DB.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	ids = append(ids, userID)

	var users []models.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load leaderboard users: %w", err)
	}
	entries := RankEntries(users, userID)
	s.writeCache(ctx, key, entries)
	return entries, nil
}

// Global returns the top limit users by XP.
func (s *LeaderboardService) Global(ctx context.Context, userID string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultGlobalLimit
	}
	key := fmt.Sprintf("leaderboard:global:%d", limit)

	var entries []LeaderboardEntry
	if !s.readCache(ctx, key, &entries) {
		var users []models.User
		if err := s.DB.WithContext(ctx).
			Order("xp DESC, display_name ASC, username ASC").
			Limit(limit).
			Find(&users).Error; err != nil {
			return nil, fmt.Errorf("load global leaderboard: %w", err)
		}
		entries = RankEntries(users, "")
		s.writeCache(ctx, key, entries)
	}

	// The cached copy is shared by everyone; mark the caller per request.
	for i := range entries {
		entries[i].IsSelf = entries[i].ID == userID
	}
	return entries, nil
}

// WarmGlobal refreshes the default global board in the cache.
func (s *LeaderboardService) WarmGlobal(ctx context.Context) error {
	if err := s.Cache.DeletePattern(ctx, fmt.Sprintf("leaderboard:global:%d", defaultGlobalLimit)); err != nil {
		return err
	}
	_, err := s.Global(ctx, "", defaultGlobalLimit)
	return err
}

func (s *LeaderboardService) readCache(ctx context.Context, key string, dest any) bool {
	ok, err := s.Cache.Get(ctx, key, dest)
	if err != nil {
		utils.Logger.Warn("leaderboard_cache_read_failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *LeaderboardService) writeCache(ctx context.Context, key string, entries []LeaderboardEntry) {
	if err := s.Cache.Set(ctx, key, entries, s.TTL); err != nil {
		utils.Logger.Warn("leaderboard_cache_write_failed", zap.String("key", key), zap.Error(err))
	}
}
