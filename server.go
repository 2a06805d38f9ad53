package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habitquest/cache"
	"habitquest/events"
	"habitquest/handlers"
	"habitquest/middleware"
	"habitquest/models"
	"habitquest/services"
	"habitquest/utils"
	"habitquest/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func runServe() error {
	log := utils.Logger
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	utils.InitMetrics()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	loc := cfg.Location()

	// Leaderboard cache: Redis when configured, otherwise every read misses.
	var store cache.Store = cache.Noop{}
	if cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("redis_unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			store = redisStore
			defer redisStore.Close()
		}
	}

	bus := events.NewBus()

	// Avatar storage stays a nil interface when R2 is not configured.
	var avatars services.AvatarStore
	if cfg.R2.AccountID != "" {
		r2, err := utils.NewR2Storage(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			CDNBaseURL:      cfg.R2.CDNBaseURL,
		})
		if err != nil {
			log.Warn("r2_unavailable", zap.Error(err))
		} else {
			avatars = r2
		}
	}

	progression := services.NewProgressionService(db, store, bus)
	achievements := services.NewAchievementService(db, progression, loc)
	users := services.NewUserService(db, avatars)
	notifications := services.NewNotificationService(db)
	svc := handlers.Services{
		Users:         users,
		Progression:   progression,
		Habits:        services.NewHabitService(db, progression, achievements, loc),
		Goals:         services.NewGoalService(db, progression, achievements),
		Achievements:  achievements,
		Friends:       services.NewFriendService(db, bus),
		Leaderboards:  services.NewLeaderboardService(db, store, cfg.Redis.LeaderboardTTL),
		Notifications: notifications,
		Feedback:      services.NewFeedbackService(db),
		Stream:        services.NewEventStream(bus),
	}

	bus.AddSink(notifications)
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaSink.Close()
		bus.AddSink(kafkaSink)
	}
	if cfg.SMTP.Host != "" {
		bus.AddSink(services.NewEmailSink(users, utils.NewMailer(utils.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})))
	}
	// Not tied to ctx so Close can drain queued events on shutdown.
	bus.Start(context.Background())

	friendLimiter := middleware.NewRateLimiter("friend_requests", cfg.RateLimit.FriendRequestsPerMinute)
	searchLimiter := middleware.NewRateLimiter("user_search", cfg.RateLimit.SearchPerMinute)

	sched, err := services.StartScheduler(svc.Habits, svc.Leaderboards, loc, services.PeriodicTask{
		Name:  "prune-rate-limiters",
		Every: 5 * time.Minute,
		Run: func(context.Context) {
			n := friendLimiter.Cleanup(10*time.Minute) + searchLimiter.Cleanup(10*time.Minute)
			if n > 0 {
				log.Debug("rate_limiters_pruned", zap.Int("removed", n))
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if cfg.Auth.ProviderURL != "" && cfg.Auth.ProviderServiceKey != "" {
		workers.NewProfileSyncWorker(db, cfg.Auth.ProviderURL, cfg.Auth.ProfileSyncPath,
			cfg.Auth.ProviderServiceKey, cfg.Auth.ProfileSyncInterval).Start(ctx)
	}

	authClient := services.NewAuthServiceClient(cfg.Auth.ProviderURL, cfg.Auth.ProviderServiceKey)
	if cfg.Auth.JWTSecret == "" && cfg.Auth.ProviderURL == "" {
		log.Warn("auth_not_configured", zap.String("hint", "set JWT_SECRET or AUTH_PROVIDER_URL"))
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.Service.Name,
		BodyLimit:    cfg.HTTP.BodyLimitMB * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	handlers.Setup(app, svc, handlers.RouteOptions{
		Verifier:      middleware.NewTokenVerifier(cfg.Auth.JWTSecret, authClient),
		ServiceToken:  cfg.Auth.ServiceToken,
		FriendLimiter: friendLimiter,
		SearchLimiter: searchLimiter,
		Ping:          sqlDB.PingContext,
	})

	go func() {
		if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
			log.Error("server_error", zap.Error(err))
			stop()
		}
	}()
	log.Info("server_started",
		zap.String("port", cfg.HTTP.Port),
		zap.String("environment", cfg.Service.Environment),
		zap.String("timezone", loc.String()),
		zap.String("origins", cfg.AllowedOrigins()),
	)

	<-ctx.Done()
	log.Info("shutting_down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		log.Warn("scheduler_shutdown_failed", zap.Error(err))
	}
	bus.Close()
	return sqlDB.Close()
}
