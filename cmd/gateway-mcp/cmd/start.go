package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mcpgateway/gateway-mcp/internal/batch"
	"github.com/mcpgateway/gateway-mcp/internal/cache"
	"github.com/mcpgateway/gateway-mcp/internal/config"
	"github.com/mcpgateway/gateway-mcp/internal/dispatch"
	"github.com/mcpgateway/gateway-mcp/internal/metatool"
	"github.com/mcpgateway/gateway-mcp/internal/metrics"
	"github.com/mcpgateway/gateway-mcp/internal/registry"
	"github.com/mcpgateway/gateway-mcp/internal/retry"
	"github.com/mcpgateway/gateway-mcp/internal/upstream"
	"github.com/mcpgateway/gateway-mcp/internal/upstreamclient"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long: `Start gateway-mcp.

The gateway spawns every enabled upstream MCP server as a subprocess, builds
the category-tool meta-surface from the routing registry, and serves it to
the calling agent over stdio (stdout is reserved for the MCP stream; all
logging goes to stderr).

Examples:
  # Start with config file settings
  gateway-mcp start

  # Start with a specific config file
  gateway-mcp --config /path/to/gateway-mcp.yaml start`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := parseLogLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Log.Level, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	} else {
		logger.Info("no config file found, using defaults and environment overrides")
	}

	// Signal context for graceful shutdown. Restoring default handling
	// after the first signal means a second Ctrl+C forces an immediate exit.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	return run(ctx, cfg, logger)
}

// run wires every component together and blocks serving the gateway over
// stdio until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	mappings := registry.Default
	if cfg.RegistryOverridesFile != "" {
		merged, err := registry.LoadOverrides(cfg.RegistryOverridesFile, mappings)
		if err != nil {
			return fmt.Errorf("failed to load registry overrides: %w", err)
		}
		mappings = merged
		logger.Info("loaded registry overrides", "file", cfg.RegistryOverridesFile)
	}
	if err := registry.Validate(mappings); err != nil {
		return fmt.Errorf("invalid registry mappings: %w", err)
	}
	reg := registry.New(mappings)

	clients, err := spawnUpstreams(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to spawn upstreams: %w", err)
	}
	defer func() {
		for name, client := range clients {
			if err := client.Disconnect(); err != nil {
				logger.Warn("upstream disconnect error", "upstream", name, "error", err)
			}
		}
	}()

	respCache := cache.New(
		cache.WithEnabled(cfg.Cache.Enabled),
		cache.WithTTL(secondsToDuration(cfg.Cache.TTLSeconds)),
		cache.WithMaxSize(cfg.Cache.MaxSize),
	)
	defer respCache.Close()

	promReg := prometheus.NewRegistry()
	recorder := metrics.New(promReg, cfg.Metrics.Enabled)

	batchExec := batch.New(cfg.Batch.MaxConcurrentOperations)

	retryPolicy := retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: millisToDuration(cfg.Retry.InitialDelayMs),
		MaxDelay:     millisToDuration(cfg.Retry.MaxDelayMs),
		Multiplier:   2,
	}

	lookup := func(name string) (dispatch.ToolCaller, bool) {
		c, ok := clients[name]
		return c, ok
	}

	dispatcher := dispatch.New(reg, lookup, respCache, retryPolicy, batchExec, recorder, logger)

	server := metatool.New(reg, dispatcher, "gateway-mcp", Version, logger)

	logger.Info("gateway-mcp starting",
		"version", Version,
		"upstreams", len(clients),
		"categories", len(reg.Categories()),
	)

	done := make(chan error, 1)
	go func() { done <- server.Serve() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return nil
	case err := <-done:
		return err
	}
}

// spawnUpstreams launches one subprocess per enabled, configured upstream
// and blocks until each completes its initialize handshake. An upstream
// that fails to spawn is logged and skipped rather than aborting startup;
// its category tools simply return SERVER_UNAVAILABLE until the process is
// fixed and the gateway restarted.
func spawnUpstreams(ctx context.Context, cfg *config.Config, logger *slog.Logger) (map[string]*upstreamclient.Client, error) {
	clients := make(map[string]*upstreamclient.Client, len(cfg.Upstreams))

	for _, u := range cfg.Upstreams {
		if !u.Enabled {
			logger.Debug("upstream disabled, skipping", "upstream", u.Name)
			continue
		}

		argv, err := u.LaunchArgs()
		if err != nil {
			logger.Warn("upstream has no launch command, skipping", "upstream", u.Name, "error", err)
			continue
		}

		desc := upstream.Descriptor{
			Name:          u.Name,
			LaunchCommand: argv,
			Env:           u.Env,
		}

		client, err := upstreamclient.Spawn(ctx, desc, logger)
		if err != nil {
			logger.Warn("failed to spawn upstream, continuing without it", "upstream", u.Name, "error", err)
			continue
		}

		clients[u.Name] = client
		logger.Info("upstream ready", "upstream", u.Name, "command", argv[0])
	}

	return clients, nil
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

func millisToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// parseLogLevel converts a string log level to slog.Level. Returns
// slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
