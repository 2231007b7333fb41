package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nitesh/social_agent/internal/hashtag"
	"github.com/nitesh/social_agent/internal/news"
	"github.com/nitesh/social_agent/internal/store"
	"github.com/nitesh/social_agent/internal/summary"
	"github.com/nitesh/social_agent/internal/twitter"
)

// LockMargin is the minimum time the approval lock must outlive a publish
// request.
const LockMargin = 5 * time.Second

type Config struct {
	Port     string
	LogLevel string

	DBDriver string
	DBDSN    string

	// RedisAddr is optional; without it approvals are guarded in-process.
	RedisAddr string
	LockTTL   time.Duration

	NewsAPIURL    string
	TwitterAPIURL string
	Twitter       twitter.Credentials
	HTTPTimeout   time.Duration

	SoftCap     int
	MaxHashtags int
	Hashtags    hashtag.Table

	AllowedOrigins []string
}

// Load reads .env (when present) and the environment. A HASHTAGS_FILE
// replaces the built-in keyword table.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          envOrDefault("PORT", "8000"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		DBDriver:      envOrDefault("DB_DRIVER", store.DriverSQLite),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		NewsAPIURL:    envOrDefault("NEWS_API_URL", news.DefaultURL),
		TwitterAPIURL: envOrDefault("TWITTER_API_URL", twitter.DefaultAPIURL),
		Twitter: twitter.Credentials{
			ConsumerKey:       os.Getenv("TWITTER_CONSUMER_KEY"),
			ConsumerSecret:    os.Getenv("TWITTER_CONSUMER_SECRET"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
		},
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	var err error
	if cfg.HTTPTimeout, err = envDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = envDuration("LOCK_TTL", 2*cfg.HTTPTimeout+LockMargin); err != nil {
		return nil, err
	}
	if cfg.SoftCap, err = envInt("SUMMARY_SOFT_CAP", summary.DefaultSoftCap); err != nil {
		return nil, err
	}
	if cfg.MaxHashtags, err = envInt("MAX_HASHTAGS", hashtag.Limit); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case store.DriverSQLite:
		cfg.DBDSN = envOrDefault("SQLITE_PATH", "./social_agent.db")
	case store.DriverPostgres:
		cfg.DBDSN = os.Getenv("DATABASE_URL")
		if cfg.DBDSN == "" {
			cfg.DBDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
				envOrDefault("DB_USER", "social_user"),
				os.Getenv("DB_PASS"),
				envOrDefault("DB_HOST", "localhost"),
				envOrDefault("DB_PORT", "5432"),
				envOrDefault("DB_NAME", "social_agent"),
			)
		}
	}

	if path := os.Getenv("HASHTAGS_FILE"); path != "" {
		if cfg.Hashtags, err = hashtag.LoadTable(path); err != nil {
			return nil, err
		}
	} else {
		cfg.Hashtags = hashtag.DefaultTable()
	}

	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		for _, u := range strings.Split(frontendURL, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, u)
			}
		}
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.DBDriver != store.DriverSQLite && c.DBDriver != store.DriverPostgres {
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", store.DriverSQLite, store.DriverPostgres, c.DBDriver)
	}
	if c.SoftCap <= 3 || c.SoftCap > summary.MaxLength {
		return fmt.Errorf("SUMMARY_SOFT_CAP must be between 4 and %d", summary.MaxLength)
	}
	if c.MaxHashtags < 0 || c.MaxHashtags > hashtag.Limit {
		return fmt.Errorf("MAX_HASHTAGS must be between 0 and %d", hashtag.Limit)
	}
	if c.HTTPTimeout <= 0 || c.LockTTL <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT and LOCK_TTL must be positive")
	}
	// the approval lock must still be held when a publish call times out
	if c.LockTTL < c.HTTPTimeout+LockMargin {
		return fmt.Errorf("LOCK_TTL (%s) must be at least HTTP_TIMEOUT (%s) + %s", c.LockTTL, c.HTTPTimeout, LockMargin)
	}
	return nil
}

func envOrDefault(key, d string) string {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	return v
}

func envInt(key string, d int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, d time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return d, nil
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return dur, nil
}
