package main

import (
	"fmt"
	"log"
	"os"

	"habitquest/config"
	"habitquest/models"
	"habitquest/services"
	"habitquest/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "habitquest",
		Short: "HabitQuest API server",
		Long:  `Habit tracking with XP, levels, goals, achievements, friends and leaderboards.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.File); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		// With no subcommand the server starts.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event sinks and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return err
			}
			utils.Logger.Info("migrated")
			return nil
		},
	}
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Migrate and upsert the built-in achievement catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return err
			}
			achievements := services.NewAchievementService(db, nil, cfg.Location())
			n, err := achievements.SeedCatalog(cmd.Context(), models.DefaultAchievements)
			if err != nil {
				return err
			}
			utils.Logger.Info("seeded", zap.Int("achievements", n))
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	defer func() { _ = utils.Logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		log.Printf("habitquest: %v", err)
		os.Exit(1)
	}
}

// openDatabase connects to Postgres with a pooled handle. Unique violations
// surface as gorm.ErrDuplicatedKey.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	return db, nil
}
