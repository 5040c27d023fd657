package config

import (
	"strings"
	"testing"
)

func minimalValidConfig() *Config {
	cfg := &Config{
		Upstreams: []UpstreamConfig{
			{Name: "serena", Enabled: true, Command: "uvx serena-mcp-server"},
			{Name: "tavily", Enabled: true, Command: "npx -y tavily-mcp", Env: map[string]string{"TAVILY_API_KEY": "key"}},
		},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidateValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidateZeroConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config unexpected error: %v", err)
	}
}

func TestValidateRejectsDuplicateUpstreamNames(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Upstreams = append(cfg.Upstreams, UpstreamConfig{Name: "serena", Command: "other"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for duplicate upstream name, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate upstream name") {
		t.Errorf("error = %q, want to contain 'duplicate upstream name'", err.Error())
	}
}

func TestValidateRejectsMissingCommand(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Upstreams = append(cfg.Upstreams, UpstreamConfig{Name: "broken"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing command, got nil")
	}
}

func TestValidateRejectsEnabledTavilyWithoutAPIKey(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	for i := range cfg.Upstreams {
		if cfg.Upstreams[i].Name == "tavily" {
			cfg.Upstreams[i].Env = nil
		}
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for enabled tavily without API key, got nil")
	}
	if !strings.Contains(err.Error(), "TAVILY_API_KEY") {
		t.Errorf("error = %q, want to contain 'TAVILY_API_KEY'", err.Error())
	}
}

func TestValidateAllowsDisabledTavilyWithoutAPIKey(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	for i := range cfg.Upstreams {
		if cfg.Upstreams[i].Name == "tavily" {
			cfg.Upstreams[i].Enabled = false
			cfg.Upstreams[i].Env = nil
		}
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error for disabled tavily: %v", err)
	}
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "Log.Level") {
		t.Errorf("error = %q, want to contain 'Log.Level'", err.Error())
	}
}

func TestValidateRejectsMaxDelayLessThanInitialDelay(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Retry.InitialDelayMs = 5000
	cfg.Retry.MaxDelayMs = 1000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for max_delay_ms < initial_delay_ms, got nil")
	}
	if !strings.Contains(err.Error(), "max_delay_ms") {
		t.Errorf("error = %q, want to contain 'max_delay_ms'", err.Error())
	}
}
