package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Logging
	LogLevel  string
	LogFormat string

	// Audit trail
	Audit AuditConfig

	// Database (Postgres audit sink 사용 시)
	Database DatabaseConfig
}

// AuditConfig holds collector/export tuning
type AuditConfig struct {
	ExportDir         string
	FlushMaxRecords   int
	FlushMaxAge       time.Duration
	NearMissThreshold float64
	ExportMaxRetries  int
	ExportRetryDelay  time.Duration
	FlushPerSec       float64
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL     string
	Enabled bool

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		Audit: AuditConfig{
			ExportDir:         getEnv("AUDIT_EXPORT_DIR", "export"),
			FlushMaxRecords:   getEnvAsInt("AUDIT_FLUSH_MAX_RECORDS", 500),
			FlushMaxAge:       getEnvAsDuration("AUDIT_FLUSH_MAX_AGE", "1m"),
			NearMissThreshold: getEnvAsFloat("AUDIT_NEAR_MISS_THRESHOLD", 0.75),
			ExportMaxRetries:  getEnvAsInt("AUDIT_EXPORT_MAX_RETRIES", 3),
			ExportRetryDelay:  getEnvAsDuration("AUDIT_EXPORT_RETRY_DELAY", "100ms"),
			FlushPerSec:       getEnvAsFloat("AUDIT_FLUSH_PER_SEC", 4),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DATABASE_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},
	}

	return cfg, nil
}

// loadEnvFile tries to load .env from common locations
func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key, fallback string) time.Duration {
	value := getEnv(key, fallback)
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	parsed, _ := time.ParseDuration(fallback)
	return parsed
}
