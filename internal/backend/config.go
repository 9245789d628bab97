package backend

import (
	"fmt"

	"cashstash/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	guard := appConfig.BalanceGuard
	if guard == "" {
		guard = config.GuardAdvisory
	}

	return Config{
		Type: backendType,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		BadgerDir:    appConfig.BadgerDir,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		BalanceGuard: guard,
		RedisAddr:    appConfig.RedisAddr,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case BadgerBackend:
		if c.BadgerDir == "" {
			return fmt.Errorf("badger directory is required for badger backend")
		}
	case MemoryBackend:
	}

	// AMQP is optional, the exchange is not
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		return fmt.Errorf("AMQP exchange is required when an AMQP URL is set")
	}
	if c.AMQPURL != "" && c.RedisAddr == "" {
		return fmt.Errorf("redis address is required to share logouts when an AMQP URL is set")
	}

	switch c.BalanceGuard {
	case "", config.GuardAdvisory:
	case config.GuardLocked:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the locked balance guard")
		}
	default:
		return fmt.Errorf("invalid balance guard: %s", c.BalanceGuard)
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, BadgerBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
