// Package config provides the configuration schema for gateway-mcp.
//
// Configuration layers from lowest to highest precedence: compiled-in
// defaults, an optional gateway-mcp.yaml file, then bare-named environment
// variables (CACHE_ENABLED, RETRY_MAX_ATTEMPTS, <UPSTREAM>_COMMAND, and so
// on). There is no dynamic reconfiguration: the process reads its
// configuration once at startup.
package config

import (
	"fmt"
	"strings"
)

// Config is the top-level gateway-mcp configuration.
type Config struct {
	// Upstreams lists every upstream MCP server the gateway can spawn.
	// The compiled-in default table (one entry per registry upstream name)
	// is merged with any matching YAML entries before env overrides apply.
	Upstreams []UpstreamConfig `yaml:"upstreams" mapstructure:"upstreams" validate:"dive"`

	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`

	// RegistryOverridesFile optionally points at a YAML file layering
	// additional (category, operation) -> upstream mappings on top of the
	// compiled-in registry defaults.
	RegistryOverridesFile string `yaml:"registry_overrides_file" mapstructure:"registry_overrides_file"`
}

// UpstreamConfig describes one upstream MCP server the gateway can spawn.
type UpstreamConfig struct {
	// Name must match an upstream name used in the registry's mappings.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// Enabled controls whether the gateway spawns this upstream at startup.
	// Defaults to true; set <UPSTREAM>_ENABLED=false to disable one without
	// editing YAML.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Command is the launch command, split on spaces (e.g. "npx -y
	// @upstash/context7-mcp"). <UPSTREAM>_COMMAND overrides this entirely.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`

	// Env are additional environment variables passed to the spawned
	// process, merged on top of the parent's inherited environment.
	Env map[string]string `yaml:"env" mapstructure:"env"`
}

// CacheConfig configures the shared response cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	TTLSeconds int  `yaml:"ttl_seconds" mapstructure:"ttl_seconds" validate:"omitempty,min=1"`
	MaxSize    int  `yaml:"max_size" mapstructure:"max_size" validate:"omitempty,min=1"`
}

// RetryConfig configures the upstream call retry policy.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=1"`
	InitialDelayMs int `yaml:"initial_delay_ms" mapstructure:"initial_delay_ms" validate:"omitempty,min=1"`
	MaxDelayMs     int `yaml:"max_delay_ms" mapstructure:"max_delay_ms" validate:"omitempty,min=1"`
}

// BatchConfig configures the batch_operations concurrency cap.
type BatchConfig struct {
	MaxConcurrentOperations int `yaml:"max_concurrent_operations" mapstructure:"max_concurrent_operations" validate:"omitempty,min=1"`
}

// MetricsConfig configures the Prometheus/snapshot metrics recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// SetDefaults fills in zero-valued numeric and string fields with the
// documented defaults. Bools are left alone: once unmarshaled, "unset"
// can't be told apart from "explicitly false", so the true defaults for
// cache.enabled and metrics.enabled are seeded in viper by bindEnvKeys.
func (c *Config) SetDefaults() {
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 1000
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelayMs == 0 {
		c.Retry.InitialDelayMs = 1000
	}
	if c.Retry.MaxDelayMs == 0 {
		c.Retry.MaxDelayMs = 10000
	}
	if c.Batch.MaxConcurrentOperations == 0 {
		c.Batch.MaxConcurrentOperations = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// UpstreamByName returns the configured upstream named name, if present.
func (c *Config) UpstreamByName(name string) (UpstreamConfig, bool) {
	for _, u := range c.Upstreams {
		if u.Name == name {
			return u, true
		}
	}
	return UpstreamConfig{}, false
}

// LaunchArgs splits Command on whitespace into argv, matching the
// upstream descriptor's []string launch command shape.
func (u UpstreamConfig) LaunchArgs() ([]string, error) {
	fields := strings.Fields(u.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("upstream %q: command is empty", u.Name)
	}
	return fields, nil
}
