package config

import (
	"time"

	"github.com/vietddude/rewriter/internal/core/domain"
	"github.com/vietddude/rewriter/internal/perf"
	"github.com/vietddude/rewriter/internal/queue"
	"github.com/vietddude/rewriter/internal/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Queue      QueueConfig      `yaml:"queue"`
	Retry      RetryConfig      `yaml:"retry"`
	Completion CompletionConfig `yaml:"completion"`
	Cache      CacheConfig      `yaml:"cache"`
	Monitor    MonitorConfig    `yaml:"monitor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int `yaml:"port"`
	MaxPromptChars  int `yaml:"max_prompt_chars"`
	MaxContextChars int `yaml:"max_context_chars"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// QueueConfig holds scheduler limits. Timeouts are milliseconds.
type QueueConfig struct {
	MaxConcurrent    int `yaml:"max_concurrent"`
	MaxQueueSize     int `yaml:"max_queue_size"`
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
	QueueTimeoutMs   int `yaml:"queue_timeout_ms"`
}

// SchedulerConfig converts to the scheduler's native config.
func (c QueueConfig) SchedulerConfig() queue.Config {
	return queue.Config{
		MaxConcurrent:  c.MaxConcurrent,
		MaxQueueSize:   c.MaxQueueSize,
		RequestTimeout: time.Duration(c.RequestTimeoutMs) * time.Millisecond,
		QueueTimeout:   time.Duration(c.QueueTimeoutMs) * time.Millisecond,
	}
}

// RetryConfig holds retry policy settings. Delays are milliseconds.
type RetryConfig struct {
	MaxRetries        int      `yaml:"max_retries"`
	BaseDelayMs       int      `yaml:"base_delay_ms"`
	MaxDelayMs        int      `yaml:"max_delay_ms"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	JitterFactor      float64  `yaml:"jitter_factor"`
	AttemptTimeoutMs  int      `yaml:"attempt_timeout_ms"`
	RetryableErrors   []string `yaml:"retryable_errors"`
}

// Policy converts to the retry executor's native policy.
func (c RetryConfig) Policy() retry.Policy {
	codes := make([]domain.ErrorCode, 0, len(c.RetryableErrors))
	for _, s := range c.RetryableErrors {
		codes = append(codes, domain.ErrorCode(s))
	}
	return retry.Policy{
		MaxRetries:        c.MaxRetries,
		BaseDelay:         time.Duration(c.BaseDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(c.MaxDelayMs) * time.Millisecond,
		BackoffMultiplier: c.BackoffMultiplier,
		JitterFactor:      c.JitterFactor,
		AttemptTimeout:    time.Duration(c.AttemptTimeoutMs) * time.Millisecond,
		RetryableCodes:    codes,
	}
}

// CompletionConfig holds settings for the hosted completion API.
type CompletionConfig struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// CacheConfig holds optional redis result cache settings. An empty URL
// disables the cache.
type CacheConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	TTLMs    int    `yaml:"ttl_ms"`
}

// MonitorConfig holds performance monitor thresholds. Latencies are
// milliseconds.
type MonitorConfig struct {
	AcceptableAvgLatencyMs int     `yaml:"acceptable_avg_latency_ms"`
	MaxP99LatencyMs        int     `yaml:"max_p99_latency_ms"`
	MaxErrorRate           float64 `yaml:"max_error_rate"`
}

// Thresholds converts to the monitor's native thresholds.
func (c MonitorConfig) Thresholds() perf.Thresholds {
	return perf.Thresholds{
		AcceptableAvgLatency: time.Duration(c.AcceptableAvgLatencyMs) * time.Millisecond,
		MaxP99Latency:        time.Duration(c.MaxP99LatencyMs) * time.Millisecond,
		MaxErrorRate:         c.MaxErrorRate,
	}
}
