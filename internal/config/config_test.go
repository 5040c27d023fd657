package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("Cache.TTLSeconds = %d, want 300", cfg.Cache.TTLSeconds)
	}
	if cfg.Cache.MaxSize != 1000 {
		t.Errorf("Cache.MaxSize = %d, want 1000", cfg.Cache.MaxSize)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialDelayMs != 1000 {
		t.Errorf("Retry.InitialDelayMs = %d, want 1000", cfg.Retry.InitialDelayMs)
	}
	if cfg.Retry.MaxDelayMs != 10000 {
		t.Errorf("Retry.MaxDelayMs = %d, want 10000", cfg.Retry.MaxDelayMs)
	}
	if cfg.Batch.MaxConcurrentOperations != 10 {
		t.Errorf("Batch.MaxConcurrentOperations = %d, want 10", cfg.Batch.MaxConcurrentOperations)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestSetDefaultsPreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Cache: CacheConfig{TTLSeconds: 60, MaxSize: 50},
		Retry: RetryConfig{MaxAttempts: 5},
		Log:   LogConfig{Level: "debug"},
	}
	cfg.SetDefaults()

	if cfg.Cache.TTLSeconds != 60 {
		t.Errorf("TTLSeconds was overwritten: got %d, want 60", cfg.Cache.TTLSeconds)
	}
	if cfg.Cache.MaxSize != 50 {
		t.Errorf("MaxSize was overwritten: got %d, want 50", cfg.Cache.MaxSize)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts was overwritten: got %d, want 5", cfg.Retry.MaxAttempts)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level was overwritten: got %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestUpstreamByName(t *testing.T) {
	t.Parallel()

	cfg := Config{Upstreams: defaultUpstreams()}

	u, ok := cfg.UpstreamByName("serena")
	if !ok {
		t.Fatal("expected serena to be found")
	}
	if u.Command == "" {
		t.Error("expected serena to have a default command")
	}

	if _, ok := cfg.UpstreamByName("nope"); ok {
		t.Error("expected unknown upstream to not be found")
	}
}

func TestLaunchArgsSplitsOnWhitespace(t *testing.T) {
	t.Parallel()

	u := UpstreamConfig{Name: "context7", Command: "npx -y @upstash/context7-mcp"}
	args, err := u.LaunchArgs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"npx", "-y", "@upstash/context7-mcp"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestLaunchArgsRejectsEmptyCommand(t *testing.T) {
	t.Parallel()

	u := UpstreamConfig{Name: "empty", Command: ""}
	if _, err := u.LaunchArgs(); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestFindConfigFileInPathsEmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if got := findConfigFileInPaths([]string{dir}); got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPathsMatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "gateway-mcp.yaml")
	_ = os.WriteFile(cfgPath, []byte("log:\n  level: debug\n"), 0644)

	if got := findConfigFileInPaths([]string{dir}); got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPathsIgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "gateway-mcp"), []byte("\x7fELF binary"), 0755)

	if got := findConfigFileInPaths([]string{dir}); got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPathsPrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "gateway-mcp.yaml")
	ymlPath := filepath.Join(dir, "gateway-mcp.yml")
	_ = os.WriteFile(yamlPath, []byte("log:\n  level: debug\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("log:\n  level: warn\n"), 0644)

	if got := findConfigFileInPaths([]string{dir}); got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}

func TestMergeDefaultUpstreamsKeepsAllFive(t *testing.T) {
	t.Parallel()

	cfg := Config{Upstreams: []UpstreamConfig{
		{Name: "serena", Enabled: false, Command: "custom-serena-command"},
	}}
	mergeDefaultUpstreams(&cfg)

	if len(cfg.Upstreams) != 5 {
		t.Fatalf("expected 5 upstreams after merge, got %d", len(cfg.Upstreams))
	}
	serena, ok := cfg.UpstreamByName("serena")
	if !ok {
		t.Fatal("expected serena present")
	}
	if serena.Enabled {
		t.Error("expected YAML override to replace the default entirely")
	}
	if serena.Command != "custom-serena-command" {
		t.Errorf("command = %q, want override to stick", serena.Command)
	}
}

func TestApplyUpstreamEnvOverrides(t *testing.T) {
	t.Setenv("SERENA_ENABLED", "false")
	t.Setenv("CONTEXT7_COMMAND", "custom context7 launcher")
	t.Setenv("TAVILY_API_KEY", "test-key")

	cfg := Config{Upstreams: defaultUpstreams()}
	applyUpstreamEnvOverrides(&cfg)

	serena, _ := cfg.UpstreamByName("serena")
	if serena.Enabled {
		t.Error("expected SERENA_ENABLED=false to disable serena")
	}

	context7, _ := cfg.UpstreamByName("context7")
	if context7.Command != "custom context7 launcher" {
		t.Errorf("context7 command = %q, want override", context7.Command)
	}

	tavily, _ := cfg.UpstreamByName("tavily")
	if !tavily.Enabled {
		t.Error("expected tavily to stay enabled when TAVILY_API_KEY is set")
	}
	if tavily.Env["TAVILY_API_KEY"] != "test-key" {
		t.Errorf("tavily env TAVILY_API_KEY = %q, want %q", tavily.Env["TAVILY_API_KEY"], "test-key")
	}
}

func TestApplyUpstreamEnvOverridesDisablesTavilyWithoutAPIKey(t *testing.T) {
	cfg := Config{Upstreams: defaultUpstreams()}
	applyUpstreamEnvOverrides(&cfg)

	tavily, _ := cfg.UpstreamByName("tavily")
	if tavily.Enabled {
		t.Error("expected tavily to be disabled without TAVILY_API_KEY")
	}
}

// TestLoadConfigZeroConfigEnablesCacheAndMetricsByDefault guards against a
// zero-config boot silently disabling the cache and metrics recorder: with
// no YAML file and no env vars set, both must come out true. Not run in
// parallel since it mutates viper's global state and the process cwd.
func TestLoadConfigZeroConfigEnablesCacheAndMetricsByDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })

	InitViper("")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Cache.Enabled {
		t.Error("expected Cache.Enabled=true on a zero-config boot")
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected Metrics.Enabled=true on a zero-config boot")
	}
}
