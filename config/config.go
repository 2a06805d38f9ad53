package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/config"
)

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	R2        R2Config        `yaml:"r2"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	// Timezone decides where a "day" starts for streaks and daily progress.
	Timezone string `yaml:"timezone"`
}

type HTTPConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowed_origins"`
	BodyLimitMB    int    `yaml:"body_limit_mb"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	// JWTSecret verifies provider-issued access tokens locally (HS256).
	JWTSecret string `yaml:"jwt_secret"`
	// ProviderURL is used to validate tokens remotely when no secret is set,
	// and by the profile sync worker.
	ProviderURL         string        `yaml:"provider_url"`
	ProviderServiceKey  string        `yaml:"provider_service_key"`
	ProfileSyncPath     string        `yaml:"profile_sync_path"`
	ProfileSyncInterval time.Duration `yaml:"profile_sync_interval"`
	// ServiceToken guards /admin routes.
	ServiceToken string `yaml:"service_token"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	LeaderboardTTL time.Duration `yaml:"leaderboard_ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type R2Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
	CDNBaseURL      string `yaml:"cdn_base_url"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type RateLimitConfig struct {
	FriendRequestsPerMinute int `yaml:"friend_requests_per_minute"`
	SearchPerMinute         int `yaml:"search_per_minute"`
}

// Load reads .env (if present), then the YAML file at CONFIG_PATH (if
// present, with ${VAR} expansion), then applies environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var opts []config.YAMLOption
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		opts = append(opts, config.File(path), config.Expand(os.LookupEnv))
	} else {
		opts = append(opts, config.Static(map[string]any{}))
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config provider: %w", err)
	}

	var cfg Config
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("failed to populate config: %w", err)
	}

	cfg.applyDefaults()
	cfg.overrideFromEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	defaultString(&c.Service.Name, "habitquest")
	defaultString(&c.Service.Environment, "development")
	defaultString(&c.Service.Timezone, "UTC")
	defaultString(&c.HTTP.Port, "5200")
	defaultString(&c.HTTP.AllowedOrigins, "http://localhost:3000")
	defaultInt(&c.HTTP.BodyLimitMB, 8)
	defaultInt(&c.Database.MaxOpenConns, 20)
	defaultInt(&c.Database.MaxIdleConns, 5)
	defaultDuration(&c.Database.ConnMaxLifetime, 30*time.Minute)
	defaultString(&c.Auth.ProfileSyncPath, "/auth/v1/admin/users")
	defaultDuration(&c.Auth.ProfileSyncInterval, 5*time.Minute)
	defaultDuration(&c.Redis.LeaderboardTTL, time.Minute)
	defaultString(&c.Kafka.Topic, "habitquest.events")
	defaultInt(&c.SMTP.Port, 587)
	defaultString(&c.SMTP.From, "HabitQuest <no-reply@habitquest.app>")
	defaultString(&c.Logging.Level, "info")
	defaultInt(&c.RateLimit.FriendRequestsPerMinute, 10)
	defaultInt(&c.RateLimit.SearchPerMinute, 60)
}

func (c *Config) overrideFromEnv() {
	setString(&c.Service.Environment, "APP_ENV")
	setString(&c.Service.Timezone, "APP_TIMEZONE")
	setString(&c.HTTP.Port, "PORT")
	setString(&c.HTTP.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.ProviderURL, "AUTH_PROVIDER_URL")
	setString(&c.Auth.ProviderServiceKey, "AUTH_PROVIDER_SERVICE_KEY")
	setString(&c.Auth.ServiceToken, "SERVICE_TOKEN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = splitList(val)
	}
	setString(&c.SMTP.Host, "SMTP_HOST")
	setInt(&c.SMTP.Port, "SMTP_PORT")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")
	setString(&c.R2.AccountID, "CLOUDFLARE_ACCOUNT_ID")
	setString(&c.R2.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&c.R2.AccessKeySecret, "R2_ACCESS_KEY_SECRET")
	setString(&c.R2.Bucket, "R2_BUCKET_NAME")
	setString(&c.R2.CDNBaseURL, "CDN_BASE_URL")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.File, "LOG_FILE")
}

// RequireDatabase reports a missing DATABASE_URL.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Service.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedOrigins returns the comma-separated origin list, trimmed.
func (c *Config) AllowedOrigins() string {
	return strings.Join(splitList(c.HTTP.AllowedOrigins), ",")
}

func defaultString(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

func defaultInt(dst *int, val int) {
	if *dst == 0 {
		*dst = val
	}
}

func defaultDuration(dst *time.Duration, val time.Duration) {
	if *dst == 0 {
		*dst = val
	}
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
