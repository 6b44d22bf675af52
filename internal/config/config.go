// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/livectl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names; single source of truth, matches the migrations
// --------------------------------------------------------------------------

const (
	FixturesTable      = "fixtures"
	ScoreRecordsTable  = "score_records"
	DedupMarkersTable  = "dedup_markers"
	SubscriptionsTable = "subscriptions"
	PreferencesTable   = "notification_preferences"
	ExclusionsTable    = "recipient_exclusions"
)

// --------------------------------------------------------------------------
// Config struct; populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting (inbound)
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Match data provider
	MatchFeedBaseURL string
	MatchFeedAPIKey  string
	MatchFeedRPM     int

	// Poller
	PollInterval  time.Duration
	PollFetchGap  time.Duration
	CurrentSeason int

	// Push delivery transport
	PushServiceURL    string
	PushServiceAPIKey string
	SendTimeout       time.Duration
	DispatchWorkers   int

	// Maintenance
	RevalidateInterval    time.Duration
	GameweekSweepInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("NEON_DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or NEON_DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		MatchFeedBaseURL: envOr("MATCH_FEED_BASE_URL", "https://api.football-data.org/v4"),
		MatchFeedAPIKey:  envOr("MATCH_FEED_API_KEY", ""),
		MatchFeedRPM:     envInt("MATCH_FEED_RPM", 10),

		PollInterval:  envDur("POLL_INTERVAL_SECONDS", 60*time.Second),
		PollFetchGap:  envDur("POLL_FETCH_GAP_SECONDS", 2*time.Second),
		CurrentSeason: envInt("CURRENT_SEASON", 2025),

		PushServiceURL:    envOr("PUSH_SERVICE_URL", "https://exp.host/--/api/v2/push"),
		PushServiceAPIKey: envOr("PUSH_SERVICE_API_KEY", ""),
		SendTimeout:       envDur("SEND_TIMEOUT_SECONDS", 12*time.Second),
		DispatchWorkers:   envInt("DISPATCH_WORKERS", 16),

		RevalidateInterval:    envDur("REVALIDATE_INTERVAL_SECONDS", 6*60*60*time.Second),
		GameweekSweepInterval: envDur("GAMEWEEK_SWEEP_INTERVAL_SECONDS", 10*60*time.Second),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
