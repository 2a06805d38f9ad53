package services

import (
	"context"
	"testing"

	"habitquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalProgress(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13}, // 12.5 rounds half up
		{3, 3, 100},
		{5, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GoalProgress(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
		// deterministic
		assert.Equal(t, GoalProgress(tt.completed, tt.total), GoalProgress(tt.completed, tt.total))
	}
}

func TestShouldAwardGoalXP(t *testing.T) {
	assert.True(t, ShouldAwardGoalXP(67, 100, false))
	assert.False(t, ShouldAwardGoalXP(100, 100, false))
	assert.False(t, ShouldAwardGoalXP(67, 100, true))
	assert.False(t, ShouldAwardGoalXP(33, 67, false))
}

func TestCompleteMilestonesAwardsGoalXPOnce(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	user := createUser(t, db, "planner", 0)

	goal, err := svc.goals.CreateGoal(ctx, user.ID, CreateGoalInput{
		Title:      "Run a marathon",
		Milestones: []CreateMilestoneInput{{Title: "5k"}, {Title: "10k"}},
	})
	require.NoError(t, err)
	require.Len(t, goal.Milestones, 2)
	first, second := goal.Milestones[0].ID, goal.Milestones[1].ID

	res, err := svc.goals.CompleteMilestone(ctx, user.ID, goal.ID, first)
	require.NoError(t, err)
	assert.Equal(t, 50, res.GoalProgress)
	assert.False(t, res.GoalCompleted)
	assert.Equal(t, int64(models.DefaultMilestoneXP), res.XPGained)

	res, err = svc.goals.CompleteMilestone(ctx, user.ID, goal.ID, second)
	require.NoError(t, err)
	assert.Equal(t, 100, res.GoalProgress)
	assert.True(t, res.GoalCompleted)
	assert.Equal(t, int64(models.DefaultMilestoneXP+models.DefaultGoalXP), res.XPGained)
	assert.True(t, svc.published.has("goal.completed", user.ID))

	// regress then complete again: no XP the second time
	res, err = svc.goals.UncompleteMilestone(ctx, user.ID, goal.ID, second)
	require.NoError(t, err)
	assert.Equal(t, 50, res.GoalProgress)
	res, err = svc.goals.CompleteMilestone(ctx, user.ID, goal.ID, second)
	require.NoError(t, err)
	assert.Equal(t, 100, res.GoalProgress)
	assert.False(t, res.GoalCompleted)
	assert.Zero(t, res.XPGained)

	reloaded := reloadUser(t, db, user.ID)
	assert.Equal(t, int64(2*models.DefaultMilestoneXP+models.DefaultGoalXP), reloaded.XP)

	var goalEvents int64
	require.NoError(t, db.Model(&models.XPEvent{}).
		Where("user_id = ? AND source = ?", user.ID, models.XPSourceGoal).Count(&goalEvents).Error)
	assert.Equal(t, int64(1), goalEvents)
}

func TestMilestoneChangesRecomputeProgress(t *testing.T) {
	db := requireDB(t)
	svc := newTestServices(db)
	ctx := context.Background()
	user := createUser(t, db, "builder", 0)

	goal, err := svc.goals.CreateGoal(ctx, user.ID, CreateGoalInput{
		Title:      "Ship it",
		Milestones: []CreateMilestoneInput{{Title: "design"}, {Title: "build"}, {Title: "test"}},
	})
	require.NoError(t, err)

	_, err = svc.goals.CompleteMilestone(ctx, user.ID, goal.ID, goal.Milestones[0].ID)
	require.NoError(t, err)
	added, err := svc.goals.AddMilestone(ctx, user.ID, goal.ID, CreateMilestoneInput{Title: "release"})
	require.NoError(t, err)
	assert.Equal(t, 25, added.GoalProgress)
	assert.Equal(t, 3, added.Milestone.Position)

	res, err := svc.goals.DeleteMilestone(ctx, user.ID, goal.ID, added.Milestone.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, res.GoalProgress)

	oldP, newP, err := svc.goals.RecomputeGoalProgress(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, oldP)
	assert.Equal(t, 33, newP)

	_, err = svc.goals.CompleteMilestone(ctx, user.ID, goal.ID, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	loadGoal := func() models.Goal {
		var g models.Goal
		require.NoError(t, db.Where("id = ?", goal.ID).First(&g).Error)
		return g
	}
	for _, ms := range goal.Milestones[1:] {
		_, err = svc.goals.CompleteMilestone(ctx, user.ID, goal.ID, ms.ID)
		require.NoError(t, err)
	}
	require.NotNil(t, loadGoal().CompletedAt)

	reopened, err := svc.goals.AddMilestone(ctx, user.ID, goal.ID, CreateMilestoneInput{Title: "docs"})
	require.NoError(t, err)
	assert.Equal(t, 75, reopened.GoalProgress)
	assert.Nil(t, loadGoal().CompletedAt, "adding a milestone reopens the goal")

	done, err := svc.goals.CompleteMilestone(ctx, user.ID, goal.ID, reopened.Milestone.ID)
	require.NoError(t, err)
	assert.False(t, done.GoalCompleted, "goal XP is paid once")
	assert.NotNil(t, loadGoal().CompletedAt)
	assert.Equal(t, int64(models.DefaultMilestoneXP), done.XPGained)

	require.NoError(t, db.Model(&models.Milestone{}).Where("id = ?", reopened.Milestone.ID).
		Update("is_completed", false).Error)
	_, newP, err = svc.goals.RecomputeGoalProgress(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, 75, newP)
	assert.Nil(t, loadGoal().CompletedAt)

	stranger := createUser(t, db, "stranger", 0)
	_, err = svc.goals.CompleteMilestone(ctx, stranger.ID, goal.ID, goal.Milestones[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.goals.DeleteGoal(ctx, user.ID, goal.ID))
	var left int64
	require.NoError(t, db.Model(&models.Milestone{}).Where("goal_id = ?", goal.ID).Count(&left).Error)
	assert.Zero(t, left)
}
