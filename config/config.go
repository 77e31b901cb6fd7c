// config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the service.
type Config struct {
	Port           string
	DatabaseURL    string
	GatewayToken   string
	AllowedOrigins []string
	RedisURL       string

	TickInterval              time.Duration
	StreakBatchSize           int
	StreakWorkers             int
	AnnouncementRetryInterval time.Duration

	// Optional: user mirror from the profile service
	ProfileSyncURL  string
	ProfileSyncPath string

	// Optional: R2 image storage
	R2 R2Config
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough R2 settings are present to build a client.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup func so tests don't have to touch the process env.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:            valueOr(getenv("PORT"), "5200"),
		DatabaseURL:     getenv("DATABASE_URL"),
		GatewayToken:    getenv("GATEWAY_SERVICE_TOKEN"),
		RedisURL:        getenv("REDIS_URL"),
		ProfileSyncURL:  getenv("PROFILE_SYNC_URL"),
		ProfileSyncPath: valueOr(getenv("PROFILE_SYNC_PATH"), "/api/v1/public/profiles"),
		R2: R2Config{
			AccountID:       getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      getenv("CDN_BASE_URL"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.GatewayToken == "" {
		return nil, fmt.Errorf("GATEWAY_SERVICE_TOKEN environment variable not set")
	}

	origins := valueOr(getenv("ALLOWED_ORIGINS"), "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	var err error
	if cfg.TickInterval, err = durationOr(getenv("SCHEDULER_TICK_INTERVAL"), 10*time.Second); err != nil {
		return nil, fmt.Errorf("SCHEDULER_TICK_INTERVAL: %w", err)
	}
	if cfg.AnnouncementRetryInterval, err = durationOr(getenv("ANNOUNCEMENT_RETRY_INTERVAL"), 30*time.Second); err != nil {
		return nil, fmt.Errorf("ANNOUNCEMENT_RETRY_INTERVAL: %w", err)
	}
	if cfg.StreakBatchSize, err = positiveIntOr(getenv("STREAK_BATCH_SIZE"), 200); err != nil {
		return nil, fmt.Errorf("STREAK_BATCH_SIZE: %w", err)
	}
	if cfg.StreakWorkers, err = positiveIntOr(getenv("STREAK_WORKERS"), 8); err != nil {
		return nil, fmt.Errorf("STREAK_WORKERS: %w", err)
	}

	return cfg, nil
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}

func positiveIntOr(v string, def int) (int, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
