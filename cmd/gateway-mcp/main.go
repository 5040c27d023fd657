// Command gateway-mcp aggregates a fixed set of upstream MCP servers
// behind a small category-tool surface, served over stdio.
package main

import "github.com/mcpgateway/gateway-mcp/cmd/gateway-mcp/cmd"

func main() {
	cmd.Execute()
}
