// Package cmd provides the CLI commands for gateway-mcp.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpgateway/gateway-mcp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gateway-mcp",
	Short: "gateway-mcp - MCP tool aggregation gateway",
	Long: `gateway-mcp aggregates multiple upstream MCP servers behind a small
set of category tools (code_operations, documentation_lookup, browser_testing,
web_research, ui_components, batch_operations) so an agent sees one compact
tool surface instead of the full union of every upstream's tools.

Quick start:
  1. Create a config file: gateway-mcp.yaml
  2. Run: gateway-mcp start

Configuration:
  Config is loaded from gateway-mcp.yaml in the current directory,
  $HOME/.gateway-mcp/, or /etc/gateway-mcp/.

  Environment variables override config values using bare names, e.g.
  CACHE_ENABLED=false, RETRY_MAX_ATTEMPTS=5, SERENA_ENABLED=false,
  TAVILY_API_KEY=...

Commands:
  start       Start the gateway over stdio
  registry    Inspect the compiled-in category/operation routing table
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./gateway-mcp.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
