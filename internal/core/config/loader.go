package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxPromptChars == 0 {
		cfg.Server.MaxPromptChars = 2000
	}
	if cfg.Server.MaxContextChars == 0 {
		cfg.Server.MaxContextChars = 10000
	}

	if cfg.Queue.MaxConcurrent == 0 {
		cfg.Queue.MaxConcurrent = 5
	}
	if cfg.Queue.MaxQueueSize == 0 {
		cfg.Queue.MaxQueueSize = 100
	}
	if cfg.Queue.RequestTimeoutMs == 0 {
		cfg.Queue.RequestTimeoutMs = 30000
	}
	if cfg.Queue.QueueTimeoutMs == 0 {
		cfg.Queue.QueueTimeoutMs = 60000
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.BaseDelayMs == 0 {
		cfg.Retry.BaseDelayMs = 1000
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = 30000
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}
	if cfg.Retry.JitterFactor == 0 {
		cfg.Retry.JitterFactor = 0.1
	}
	if cfg.Retry.AttemptTimeoutMs == 0 {
		cfg.Retry.AttemptTimeoutMs = 30000
	}

	if cfg.Completion.TimeoutMs == 0 {
		cfg.Completion.TimeoutMs = 30000
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "text-rewrite-1"
	}

	if cfg.Cache.TTLMs == 0 {
		cfg.Cache.TTLMs = 3600000
	}
}
