package redistream

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds configuration for Redis list sources and sinks.
type Config struct {
	// Client is the Redis client used for transport. It is injected and
	// remains owned by the caller.
	Client redis.UniversalClient

	// Key is the Redis list holding the chunks.
	Key string

	// BlockTimeout bounds each blocking pop. The source waits server-side
	// in slices of this length, so stream cancellation takes effect within
	// one slice.
	// Default: 1s
	BlockTimeout time.Duration

	// OpTimeout bounds non-blocking Redis commands.
	// Default: 500ms
	OpTimeout time.Duration

	// MaxLen caps the list length on push; older entries are trimmed.
	// Zero means unbounded.
	MaxLen int64

	// KeyTTL refreshes the list's expiry on each push. Zero means no
	// expiry is set.
	KeyTTL time.Duration
}

// DefaultConfig returns a default configuration. Client and Key have no
// defaults and must be set.
func DefaultConfig() Config {
	return Config{
		BlockTimeout: time.Second,
		OpTimeout:    500 * time.Millisecond,
	}
}

// validateConfig validates the transport configuration.
func validateConfig(config Config) error {
	if config.Client == nil {
		return &ConfigError{"redis client is required"}
	}
	if config.Key == "" {
		return &ConfigError{"key is required"}
	}
	if config.MaxLen < 0 {
		return &ConfigError{"max length must not be negative"}
	}
	return nil
}

// applyConfigDefaults sets default values for unspecified config fields.
func applyConfigDefaults(config Config) Config {
	if config.BlockTimeout <= 0 {
		config.BlockTimeout = DefaultConfig().BlockTimeout
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = DefaultConfig().OpTimeout
	}
	return config
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "redistream config error: " + e.Message
}

// RedisError wraps a failed Redis operation.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}
