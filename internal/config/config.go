package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Data backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Balance guard policies.
const (
	GuardAdvisory = "advisory"
	GuardLocked   = "locked"
)

const minSecretLen = 16

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	BadgerDir    string

	// AMQP change relay; empty URL keeps change fan-out in process.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Balance check
	BalanceGuard        string
	RedisAddr           string
	LowBalanceThreshold float64

	// Sessions
	JWTSecret string
	TokenTTL  time.Duration

	// Logging
	LogLevel string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Google Sheets ledger mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cashstash.db"),
		BadgerDir:    getEnv("BADGER_DIR", "./data/badger"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cashstash.changes"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "cashstash.ledger_mirror"),

		BalanceGuard:        getEnv("BALANCE_GUARD", GuardAdvisory),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		LowBalanceThreshold: getEnvFloat("LOW_BALANCE_THRESHOLD", 1000),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}
}

// Validate checks the server configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendBadger}
	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(filepath.Dir(c.SQLiteDBPath)); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	case BackendBadger:
		if c.BadgerDir == "" {
			errors = append(errors, "Badger directory cannot be empty when using badger backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.RedisAddr == "" {
			errors = append(errors, "REDIS_ADDR is required when AMQP URL is provided (logouts are shared through Redis)")
		}
	}

	validGuards := []string{GuardAdvisory, GuardLocked}
	if !contains(validGuards, c.BalanceGuard) {
		errors = append(errors, fmt.Sprintf("invalid balance guard '%s': must be one of %v", c.BalanceGuard, validGuards))
	}
	if c.BalanceGuard == GuardLocked && c.RedisAddr == "" {
		errors = append(errors, "REDIS_ADDR is required when BALANCE_GUARD=locked")
	}
	if c.LowBalanceThreshold < 0 {
		errors = append(errors, fmt.Sprintf("invalid low balance threshold %v: must not be negative", c.LowBalanceThreshold))
	}

	if len(c.JWTSecret) < minSecretLen {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d characters", minSecretLen))
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	} else if c.TokenTTL > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at most 30 days", c.TokenTTL))
	}

	if c.RateLimitRPS <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must be positive", c.RateLimitRPS))
	}
	if c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateMirror checks what the ledger mirror worker needs on top of AMQP.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the ledger mirror")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty for the ledger mirror")
	}
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
