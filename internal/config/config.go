package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = DefaultMetricsPort
	}
	if cfg.StatsLogInterval == 0 {
		cfg.StatsLogInterval = DefaultStatsLogInterval
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.BatchWindow == 0 {
		cfg.BatchWindow = DefaultBatchWindow
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = DefaultSlowQueryThreshold
	}
	if cfg.SampleWindow == 0 {
		cfg.SampleWindow = DefaultSampleWindow
	}
	if cfg.QueryRegistrySize == 0 {
		cfg.QueryRegistrySize = DefaultQueryRegistrySize
	}

	if cfg.TTL == nil {
		cfg.TTL = &TTLConfig{}
	}
	if cfg.TTL.Short == 0 {
		cfg.TTL.Short = DefaultTTLShort
	}
	if cfg.TTL.Medium == 0 {
		cfg.TTL.Medium = DefaultTTLMedium
	}
	if cfg.TTL.Long == 0 {
		cfg.TTL.Long = DefaultTTLLong
	}
	if cfg.TTL.Static == 0 {
		cfg.TTL.Static = DefaultTTLStatic
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.StoreURL == "" {
		return errors.New("storeUrl is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("metricsPort must be between 0 and 65535")
	}

	if cfg.MaxConcurrent < 1 {
		return fmt.Errorf("maxConcurrent must be positive")
	}

	if cfg.BatchWindow < 1 {
		return fmt.Errorf("batchWindow must be positive")
	}

	if cfg.SlowQueryThreshold < 1 {
		return fmt.Errorf("slowQueryThreshold must be positive")
	}

	if cfg.SampleWindow < 1 {
		return fmt.Errorf("sampleWindow must be positive")
	}

	if cfg.QueryRegistrySize < 1 {
		return fmt.Errorf("queryRegistrySize must be positive")
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}

	if cfg.TTL.Short <= 0 || cfg.TTL.Medium <= 0 || cfg.TTL.Long <= 0 || cfg.TTL.Static <= 0 {
		return fmt.Errorf("all ttl tiers must be positive")
	}

	if !(cfg.TTL.Short <= cfg.TTL.Medium && cfg.TTL.Medium <= cfg.TTL.Long && cfg.TTL.Long <= cfg.TTL.Static) {
		return fmt.Errorf("ttl tiers must be ordered: short <= medium <= long <= static")
	}

	return nil
}
