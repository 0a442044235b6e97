package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Rating    RatingConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	App       AppConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	LLM       LLMConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StorageConfig selects the backing store for content and ratings
type StorageConfig struct {
	Driver         string
	MigrationsPath string
}

// RatingConfig holds rating ledger and aggregation configuration
type RatingConfig struct {
	ScoreCache   bool          // keep an in-process score cache, updated on every submission
	MaxRetries   int           // conflict retries before surfacing a ConflictError
	RetryBackoff time.Duration // base backoff between conflict retries
	MaxClockSkew time.Duration // how far in the future a client-supplied submittedAt may be
	LockStripes  int
}

// AuthConfig holds participant token configuration
type AuthConfig struct {
	Enabled    bool
	Secret     string // PEM-encoded EC private key
	Issuer     string
	Expiration time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env     string
	Name    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	ScoreAuditCron        string // e.g., "*/15 * * * *" (every 15 minutes)
	ScoreAuditBatch       int    // notes checked per audit run
	EnableScoreAudit      bool
	ScoreAuditMaxDuration time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL  string
	Model    string
	Enabled  bool
	Timeout  time.Duration
	Personas []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// godotenv doesn't override already-set variables, so order matters
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8000"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 90*time.Second),
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "notes"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "notes_db"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Rating: RatingConfig{
			ScoreCache:   getBoolEnv("RATING_SCORE_CACHE", true),
			MaxRetries:   getIntEnv("RATING_MAX_RETRIES", 3),
			RetryBackoff: getDurationEnv("RATING_RETRY_BACKOFF", 20*time.Millisecond),
			MaxClockSkew: getDurationEnv("RATING_MAX_CLOCK_SKEW", 1*time.Minute),
			LockStripes:  getIntEnv("RATING_LOCK_STRIPES", 256),
		},
		Auth: AuthConfig{
			Enabled:    getBoolEnv("AUTH_ENABLED", false),
			Secret:     getEnv("JWT_SECRET", ""),
			Issuer:     getEnv("JWT_ISSUER", "notes-ledger"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"X-Request-ID"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 300),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		App: AppConfig{
			Env:     getEnv("APP_ENV", "development"),
			Name:    getEnv("APP_NAME", "NotesLedger"),
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Scheduler: SchedulerConfig{
			ScoreAuditCron:        getEnv("SCHEDULER_SCORE_AUDIT_CRON", "*/15 * * * *"),
			ScoreAuditBatch:       getIntEnv("SCHEDULER_SCORE_AUDIT_BATCH", 500),
			EnableScoreAudit:      getBoolEnv("SCHEDULER_ENABLE_SCORE_AUDIT", true),
			ScoreAuditMaxDuration: getDurationEnv("SCHEDULER_SCORE_AUDIT_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:  getEnv("LLM_BASE_URL", "http://localhost:11434"),
			Model:    getEnv("LLM_MODEL", "llama3"),
			Enabled:  getBoolEnv("LLM_ENABLED", false),
			Timeout:  getDurationEnv("LLM_TIMEOUT", 60*time.Second),
			Personas: getSliceEnv("LLM_PERSONAS", []string{"The Skeptic"}),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverPostgres, StorageDriverMemory, c.Storage.Driver)
	}
	if c.Auth.Enabled && c.Auth.Secret == "" && c.App.Env == "production" {
		return fmt.Errorf("JWT_SECRET is required in production when AUTH_ENABLED is set")
	}
	if c.Database.Password == "" && c.App.Env == "production" && c.Storage.Driver == StorageDriverPostgres {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if c.Rating.MaxRetries < 0 {
		return fmt.Errorf("RATING_MAX_RETRIES must not be negative")
	}
	if c.Rating.LockStripes < 1 {
		return fmt.Errorf("RATING_LOCK_STRIPES must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Split by comma and trim whitespace
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
