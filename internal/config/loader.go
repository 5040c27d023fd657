package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/spf13/viper"
)

// defaultUpstreams is the compiled-in upstream table, one entry per
// upstream name the registry's default mappings route to. YAML and
// environment variables layer on top of this; nothing here requires the
// config file to exist at all.
func defaultUpstreams() []UpstreamConfig {
	return []UpstreamConfig{
		{Name: "serena", Enabled: true, Command: "uvx --from git+https://github.com/oraios/serena serena-mcp-server"},
		{Name: "context7", Enabled: true, Command: "npx -y @upstash/context7-mcp"},
		{Name: "playwright", Enabled: true, Command: "npx -y @playwright/mcp"},
		{Name: "tavily", Enabled: true, Command: "npx -y tavily-mcp"},
		{Name: "shadcn", Enabled: true, Command: "npx -y shadcn@latest mcp"},
	}
}

// InitViper initializes Viper with the configuration file and bare-named
// environment variable bindings. If configFile is empty, it searches for
// gateway-mcp.yaml/.yml in standard locations, mirroring how the teacher
// repo locates its own config file without matching the binary itself.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("gateway-mcp")
		viper.SetConfigType("yaml")
	}

	bindEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".gateway-mcp"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "gateway-mcp"))
		}
	} else {
		paths = append(paths, "/etc/gateway-mcp")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for gateway-mcp.yaml
// or .yml, preferring .yaml. A bare "gateway-mcp" file (e.g. the compiled
// binary sitting next to itself) never matches since an extension is
// required.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "gateway-mcp"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindEnvKeys binds the bare-named environment variables documented for
// the ambient config fields. Per-upstream overrides (<UPSTREAM>_ENABLED,
// <UPSTREAM>_COMMAND, TAVILY_API_KEY) are applied separately in
// applyUpstreamEnvOverrides since their variable names depend on data
// (the configured upstream list), not static struct paths.
func bindEnvKeys() {
	// Seed the booleans that default to true before binding their env
	// override, so a zero-config boot (no YAML, no env var) still yields
	// true rather than the Go zero value.
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("metrics.enabled", true)

	_ = viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = viper.BindEnv("cache.ttl_seconds", "CACHE_TTL_SECONDS")
	_ = viper.BindEnv("cache.max_size", "CACHE_MAX_SIZE")
	_ = viper.BindEnv("retry.max_attempts", "RETRY_MAX_ATTEMPTS")
	_ = viper.BindEnv("retry.initial_delay_ms", "RETRY_INITIAL_DELAY_MS")
	_ = viper.BindEnv("retry.max_delay_ms", "RETRY_MAX_DELAY_MS")
	_ = viper.BindEnv("batch.max_concurrent_operations", "MAX_CONCURRENT_OPERATIONS")
	_ = viper.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = viper.BindEnv("log.level", "LOG_LEVEL")
}

// LoadConfig reads the configuration file (if any), merges the compiled-in
// upstream defaults with any YAML-declared upstreams, applies bare-named
// environment variable overrides, fills remaining defaults, and validates
// the result.
func LoadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Config{Upstreams: defaultUpstreams()}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	mergeDefaultUpstreams(&cfg)
	applyUpstreamEnvOverrides(&cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// mergeDefaultUpstreams ensures every compiled-in upstream is present even
// when the YAML file declares only a subset (or none). A YAML entry with
// the same name as a default entirely replaces it, matching the registry
// overlay's last-one-wins semantics.
func mergeDefaultUpstreams(cfg *Config) {
	byName := make(map[string]UpstreamConfig, len(cfg.Upstreams))
	var order []string
	for _, u := range defaultUpstreams() {
		byName[u.Name] = u
		order = append(order, u.Name)
	}
	for _, u := range cfg.Upstreams {
		if _, exists := byName[u.Name]; !exists {
			order = append(order, u.Name)
		}
		byName[u.Name] = u
	}

	merged := make([]UpstreamConfig, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	cfg.Upstreams = merged
}

// applyUpstreamEnvOverrides reads <UPSTREAM>_ENABLED, <UPSTREAM>_COMMAND,
// and TAVILY_API_KEY, where <UPSTREAM> is the upstream's name upper-cased.
// These variable names are data-dependent (one per configured upstream),
// so they can't be declared as static BindEnv calls the way the ambient
// fields are.
func applyUpstreamEnvOverrides(cfg *Config) {
	for i := range cfg.Upstreams {
		u := &cfg.Upstreams[i]
		prefix := envPrefix(u.Name)

		if v, ok := os.LookupEnv(prefix + "_ENABLED"); ok {
			if parsed, err := strconv.ParseBool(v); err == nil {
				u.Enabled = parsed
			}
		}
		if v, ok := os.LookupEnv(prefix + "_COMMAND"); ok && v != "" {
			u.Command = v
		}
	}

	key, hasKey := os.LookupEnv("TAVILY_API_KEY")
	for i := range cfg.Upstreams {
		if cfg.Upstreams[i].Name != "tavily" {
			continue
		}
		if hasKey && key != "" {
			if cfg.Upstreams[i].Env == nil {
				cfg.Upstreams[i].Env = map[string]string{}
			}
			cfg.Upstreams[i].Env["TAVILY_API_KEY"] = key
		} else {
			// The key is required to enable tavily; without it the
			// upstream is disabled regardless of any other override.
			cfg.Upstreams[i].Enabled = false
		}
	}
}

func envPrefix(upstreamName string) string {
	out := make([]byte, len(upstreamName))
	for i := 0; i < len(upstreamName); i++ {
		c := upstreamName[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c == '-' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or an empty string if none was found (environment-only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
