// Package metatool exposes the gateway's dispatcher as a small, fixed set
// of MCP tools: one per registry category plus a batch_operations tool.
// Rather than forwarding every upstream tool schema to the agent, each
// category tool takes an "operation" enum (populated from the registry)
// and an open params object, so adding an upstream tool never changes the
// surface an agent sees.
package metatool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mcpgateway/gateway-mcp/internal/dispatch"
	"github.com/mcpgateway/gateway-mcp/internal/registry"
)

// Server wraps an MCP stdio server exposing the category and batch tools.
type Server struct {
	mcp        *server.MCPServer
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	logger     *slog.Logger
}

// New builds the meta-tool server and registers all category tools plus
// batch_operations against reg's current category list.
func New(reg *registry.Registry, d *dispatch.Dispatcher, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp: server.NewMCPServer(
			name,
			version,
			server.WithToolCapabilities(false),
		),
		dispatcher: d,
		registry:   reg,
		logger:     logger,
	}

	for _, category := range reg.Categories() {
		s.registerCategoryTool(category)
	}
	s.registerBatchTool()

	return s
}

// Serve blocks, speaking MCP over stdio until the process is asked to exit.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerCategoryTool(category string) {
	operations := s.registry.ListOperations(category)

	tool := mcp.NewTool(category,
		mcp.WithDescription(fmt.Sprintf("Run one %s operation against its mapped upstream server", category)),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Enum(operations...),
			mcp.Description("Operation name, one of the enumerated values"),
		),
		mcp.WithObject("params",
			mcp.Description("Arguments forwarded to the underlying upstream tool"),
		),
	)

	s.mcp.AddTool(tool, s.handleCategoryCall(category))
}

func (s *Server) handleCategoryCall(category string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		operation, err := req.RequireString("operation")
		if err != nil {
			return toolResult(validationFailure(dispatch.CodeValidationError, "missing required parameter: operation"))
		}

		params, _ := req.GetArguments()["params"].(map[string]any)
		if params == nil {
			params = map[string]any{}
		}

		result := s.dispatcher.Dispatch(ctx, category, operation, params)
		return toolResult(fromBridgeResult(result))
	}
}

func (s *Server) registerBatchTool() {
	tool := mcp.NewTool("batch_operations",
		mcp.WithDescription("Run several category operations concurrently and return all-settled results in call order"),
		mcp.WithArray("operations",
			mcp.Required(),
			mcp.Description("List of {category, operation, params} objects"),
		),
	)

	s.mcp.AddTool(tool, s.handleBatchCall)
}

func (s *Server) handleBatchCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["operations"].([]any)
	if !ok {
		return toolResult(validationFailure(dispatch.CodeValidationError, "missing required parameter: operations"))
	}

	ops, err := parseBatchOps(raw)
	if err != nil {
		return toolResult(validationFailure(dispatch.CodeValidationError, err.Error()))
	}

	results, summary := s.dispatcher.DispatchBatch(ctx, ops)

	envelopes := make([]envelope, len(results))
	for i, res := range results {
		envelopes[i] = fromBridgeResult(res)
	}

	body := struct {
		Success bool       `json:"success"`
		Results []envelope `json:"results"`
		Summary struct {
			Total     int `json:"total"`
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		} `json:"summary"`
	}{Success: true, Results: envelopes}
	body.Summary.Total = summary.Total
	body.Summary.Succeeded = summary.Succeeded
	body.Summary.Failed = summary.Failed

	data, err := json.Marshal(body)
	if err != nil {
		return toolResult(validationFailure(dispatch.CodeInternalError, fmt.Sprintf("encoding batch result: %v", err)))
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseBatchOps(raw []any) ([]dispatch.BatchOp, error) {
	ops := make([]dispatch.BatchOp, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("operations[%d]: expected an object", i)
		}
		category, _ := m["category"].(string)
		operation, _ := m["operation"].(string)
		if category == "" || operation == "" {
			return nil, fmt.Errorf("operations[%d]: category and operation are required", i)
		}
		params, _ := m["params"].(map[string]any)
		if params == nil {
			params = map[string]any{}
		}
		ops = append(ops, dispatch.BatchOp{Category: category, Operation: operation, Params: params})
	}
	return ops, nil
}

func toolResult(env envelope) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	if !env.Success {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
