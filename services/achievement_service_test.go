package services

import (
	"context"
	"sync"
	"testing"

	"habitquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogEntry(t *testing.T, name string) models.Achievement {
	t.Helper()
	for _, a := range models.DefaultAchievements {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("no default achievement named %q", name)
	return models.Achievement{}
}

func TestSeedCatalogIsIdempotent(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	n, err := svc.achievements.SeedCatalog(ctx, models.DefaultAchievements)
	require.NoError(t, err)
	assert.Equal(t, len(models.DefaultAchievements), n)
	_, err = svc.achievements.SeedCatalog(ctx, models.DefaultAchievements)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Achievement{}).Count(&count).Error)
	assert.Equal(t, int64(len(models.DefaultAchievements)), count)

	var early models.Achievement
	require.NoError(t, db.Where("code = ?", "early-bird").First(&early).Error)
	assert.Equal(t, models.CriteriaEarlyCompletion, early.Criteria.Type)
	assert.Equal(t, "07:00", early.Criteria.SpecificTime)
}

func TestTotalHabitsAchievementAwardedOnce(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	builder := catalogEntry(t, "Habit Builder")
	_, err := svc.achievements.SeedCatalog(ctx, []models.Achievement{builder})
	require.NoError(t, err)

	user := createUser(t, db, "collector", 0)
	for i := 0; i < 5; i++ {
		_, err := svc.habits.CreateHabit(ctx, user.ID, CreateHabitInput{Title: "habit"})
		require.NoError(t, err)
	}

	// the fifth CreateHabit already unlocked it
	for i := 0; i < 2; i++ {
		unlocked, err := svc.achievements.Check(ctx, user.ID, CheckContext{})
		require.NoError(t, err)
		assert.Empty(t, unlocked)
	}

	var earned int64
	require.NoError(t, db.Model(&models.UserAchievement{}).Where("user_id = ?", user.ID).Count(&earned).Error)
	assert.Equal(t, int64(1), earned)
	assert.Equal(t, builder.XPReward, reloadUser(t, db, user.ID).XP)
	assert.True(t, svc.published.has("achievement.unlocked", user.ID))
}

func TestConcurrentChecksAwardOnce(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	_, err := svc.achievements.SeedCatalog(ctx, []models.Achievement{catalogEntry(t, "XP Collector")})
	require.NoError(t, err)
	user := createUser(t, db, "racer", 1000)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlocked, err := svc.achievements.Check(ctx, user.ID, CheckContext{})
			assert.NoError(t, err)
			mu.Lock()
			total += len(unlocked)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	assert.Equal(t, int64(1100), reloadUser(t, db, user.ID).XP)
}

func TestCheckUsesContextAndSnapshot(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()

	_, err := svc.achievements.SeedCatalog(ctx, []models.Achievement{
		catalogEntry(t, "On Fire"),
		catalogEntry(t, "Rising Star"),
	})
	require.NoError(t, err)
	user := createUser(t, db, "streaker", 0)

	unlocked, err := svc.achievements.Check(ctx, user.ID, CheckContext{Streak: ptr(3)})
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "on-fire", unlocked[0].Code)

	// 25 XP from On Fire does not re-trigger evaluation within the pass
	list, err := svc.achievements.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, st := range list {
		assert.Equal(t, st.Code == "on-fire", st.Earned, st.Code)
	}

	_, err = svc.achievements.Check(ctx, "00000000-0000-0000-0000-000000000000", CheckContext{})
	assert.ErrorIs(t, err, ErrNotFound)
}
