package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/fanguard/internal/policy"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

// Server exposes a policy engine as MCP tools.
type Server struct {
	mcpServer *mcpsdk.Server
	engine    *policy.Engine
	auditPath string
}

// New wraps engine. auditPath names the hash-chained export verified by
// fan_audit; empty disables verification.
func New(engine *policy.Engine, auditPath string) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("mcp: engine is required")
	}
	s := &Server{
		engine:    engine,
		auditPath: auditPath,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "fanguard",
			Version: Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all fanguard tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "fan_status",
		Description: "Report the safety state, control authority, validation flag and known channels.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "fan_request_write",
		Description: "Request a fan target (percent) on a channel. Denied or failed writes return an error result with the reason.",
	}, s.handleRequestWrite)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "fan_apply_balanced",
		Description: "Apply the balanced profile target to a channel. Omit target to use the configured balanced_target.",
	}, s.handleApplyBalanced)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "fan_audit",
		Description: "List safety transitions and audit events, and verify the exported audit chain when configured.",
	}, s.handleAudit)
}
