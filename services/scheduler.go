package services

import (
	"context"
	"time"

	"habitquest/utils"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// PeriodicTask is an extra job registered next to the built-in ones.
type PeriodicTask struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context)
}

// StartScheduler runs the periodic jobs: stale streak reset, global
// leaderboard warm-up and any extra tasks. Call Shutdown on the returned
// scheduler on exit.
func StartScheduler(habits *HabitService, boards *LeaderboardService, loc *time.Location, extra ...PeriodicTask) (gocron.Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	// Every hour: zero streaks of habits that missed a whole period
	_, err = sched.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			n, err := habits.ResetMissedStreaks(ctx)
			if err != nil {
				utils.Logger.Error("streak_reset_failed", zap.Error(err))
				return
			}
			if n > 0 {
				utils.Logger.Info("streaks_reset", zap.Int64("habits", n))
			}
		}),
		gocron.WithName("reset-missed-streaks"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}

	// Every minute: keep the global board warm
	_, err = sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := boards.WarmGlobal(ctx); err != nil {
				utils.Logger.Warn("leaderboard_warm_failed", zap.Error(err))
			}
		}),
		gocron.WithName("warm-global-leaderboard"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	for _, task := range extra {
		task := task
		_, err = sched.NewJob(
			gocron.DurationJob(task.Every),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), task.Every)
				defer cancel()
				task.Run(ctx)
			}),
			gocron.WithName(task.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
