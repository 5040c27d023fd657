package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcpgateway/gateway-mcp/internal/config"
	"github.com/mcpgateway/gateway-mcp/internal/registry"
)

var registryListCategory string

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the category/operation routing table",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every (category, operation) -> upstream mapping",
	Long: `List the compiled-in routing table, merged with the registry overrides
file if one is configured. Use --category to filter.`,
	RunE: runRegistryList,
}

func init() {
	registryListCmd.Flags().StringVar(&registryListCategory, "category", "", "only show mappings for this category")
	registryCmd.AddCommand(registryListCmd)
	rootCmd.AddCommand(registryCmd)
}

func runRegistryList(cmd *cobra.Command, args []string) error {
	mappings := registry.Default

	cfg, err := config.LoadConfig()
	if err == nil && cfg.RegistryOverridesFile != "" {
		if merged, overrideErr := registry.LoadOverrides(cfg.RegistryOverridesFile, mappings); overrideErr == nil {
			mappings = merged
		}
	}

	filtered := make([]registry.Mapping, 0, len(mappings))
	for _, m := range mappings {
		if registryListCategory != "" && m.Category != registryListCategory {
			continue
		}
		filtered = append(filtered, m)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Category != filtered[j].Category {
			return filtered[i].Category < filtered[j].Category
		}
		return filtered[i].Operation < filtered[j].Operation
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tOPERATION\tUPSTREAM\tUPSTREAM TOOL\tCACHEABLE")
	for _, m := range filtered {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", m.Category, m.Operation, m.UpstreamName, m.UpstreamTool, m.Cacheable)
	}
	return w.Flush()
}
