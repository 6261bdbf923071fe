package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// External collaborators
	ProfileStoreURL string
	MatchStoreURL   string
	QuotaAPIURL     string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheBackend string // "memory" or "redis"
	CacheTTL     time.Duration
	RedisAddr    string
	RedisDB      int

	// Scoring policy. Thresholds and bonuses are policy constants, not
	// invariants; all are overridable per deployment.
	MaxPreferredDistanceKm  float64
	SuspiciousMatchesPerDay int
	ActiveUserBaseline      int
	SuperLikeBoost          float64

	// Ranking
	RecommendLimit  int
	RecommendTTL    time.Duration
	CompatWeight    float64
	HistoryWeight   float64
	ActivityWeight  float64
	ReasonThreshold float64

	// Deadlines
	RecommendTimeout time.Duration
	SearchTimeout    time.Duration

	// Observability
	OTLPEndpoint string

	// Admin auth (reindex-all)
	AdminJWTSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ProfileStoreURL: getEnv("PROFILE_STORE_URL", "http://localhost:8081"),
		MatchStoreURL:   getEnv("MATCH_STORE_URL", "http://localhost:8082"),
		QuotaAPIURL:     getEnv("QUOTA_API_URL", "http://localhost:8083"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 16),

		CacheBackend: getEnv("CACHE_BACKEND", "memory"),
		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      getEnvInt("REDIS_DB", 0),

		MaxPreferredDistanceKm:  getEnvFloat("MAX_PREFERRED_DISTANCE_KM", 500),
		SuspiciousMatchesPerDay: getEnvInt("SUSPICIOUS_MATCHES_PER_DAY", 20),
		ActiveUserBaseline:      getEnvInt("ACTIVE_USER_BASELINE", 30),
		SuperLikeBoost:          getEnvFloat("SUPER_LIKE_BOOST", 1.2),

		RecommendLimit:  getEnvInt("RECOMMEND_LIMIT", 20),
		RecommendTTL:    getEnvDuration("RECOMMEND_TTL", 5*time.Minute),
		CompatWeight:    getEnvFloat("RANK_COMPAT_WEIGHT", 0.70),
		HistoryWeight:   getEnvFloat("RANK_HISTORY_WEIGHT", 0.15),
		ActivityWeight:  getEnvFloat("RANK_ACTIVITY_WEIGHT", 0.15),
		ReasonThreshold: getEnvFloat("REASON_THRESHOLD", 0.7),

		RecommendTimeout: getEnvDuration("RECOMMEND_TIMEOUT", 10*time.Second),
		SearchTimeout:    getEnvDuration("SEARCH_TIMEOUT", 5*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", "fundmatch-default-dev-secret-change-me"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
