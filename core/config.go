package core

import (
	"fmt"
	"strings"
	"time"
)

// QueueConfig tunes the retry scheduler and claim mechanics shared by the
// sync and document queues. Durations are millisecond integers so they
// survive raw-map config loading unambiguously.
type QueueConfig struct {
	MaxAttempts         int     `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS    int     `koanf:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS        int     `koanf:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	JitterFraction      float64 `koanf:"jitter_fraction" mapstructure:"jitter_fraction"`
	RateLimitMultiplier float64 `koanf:"rate_limit_multiplier" mapstructure:"rate_limit_multiplier"`
	StaleClaimMS        int     `koanf:"stale_claim_ms" mapstructure:"stale_claim_ms"`
}

func (c QueueConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

func (c QueueConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

func (c QueueConfig) StaleClaimTimeout() time.Duration {
	return time.Duration(c.StaleClaimMS) * time.Millisecond
}

type PaginationConfig struct {
	DefaultPerPage int `koanf:"default_per_page" mapstructure:"default_per_page"`
	MaxPerPage     int `koanf:"max_per_page" mapstructure:"max_per_page"`
}

type AuditConfig struct {
	BatchSize   int `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts int `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Queue       QueueConfig      `koanf:"queue" mapstructure:"queue"`
	Pagination  PaginationConfig `koanf:"pagination" mapstructure:"pagination"`
	Audit       AuditConfig      `koanf:"audit" mapstructure:"audit"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "syncengine",
		Queue: QueueConfig{
			MaxAttempts:         5,
			InitialBackoffMS:    30_000,
			MaxBackoffMS:        1_800_000,
			JitterFraction:      0.2,
			RateLimitMultiplier: 4,
			StaleClaimMS:        600_000,
		},
		Pagination: PaginationConfig{
			DefaultPerPage: 25,
			MaxPerPage:     100,
		},
		Audit: AuditConfig{
			BatchSize:   50,
			MaxAttempts: 8,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("core: queue.max_attempts must be at least 1")
	}
	if c.Queue.InitialBackoffMS < 0 || c.Queue.MaxBackoffMS < 0 {
		return fmt.Errorf("core: queue backoff durations must not be negative")
	}
	if c.Queue.MaxBackoffMS > 0 && c.Queue.MaxBackoffMS < c.Queue.InitialBackoffMS {
		return fmt.Errorf("core: queue.max_backoff_ms must be >= initial_backoff_ms")
	}
	if c.Queue.JitterFraction < 0 || c.Queue.JitterFraction > 1 {
		return fmt.Errorf("core: queue.jitter_fraction must be within [0, 1]")
	}
	if c.Pagination.DefaultPerPage < 1 || c.Pagination.MaxPerPage < c.Pagination.DefaultPerPage {
		return fmt.Errorf("core: pagination bounds are invalid")
	}
	if c.Audit.BatchSize < 1 {
		return fmt.Errorf("core: audit.batch_size must be at least 1")
	}
	return nil
}

// Scheduler builds the retry scheduler described by the queue config.
func (c Config) Scheduler() RetryScheduler {
	return RetryScheduler{
		Initial:             c.Queue.InitialBackoff(),
		Max:                 c.Queue.MaxBackoff(),
		JitterFraction:      c.Queue.JitterFraction,
		RateLimitMultiplier: c.Queue.RateLimitMultiplier,
	}
}
