// Package mcp exposes the assessment service as Model Context Protocol tools so that agents
// can browse the catalog, score response sets and export reports.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/clinical-assessment-engine/internal/domain"
	"github.com/clinical-assessment-engine/internal/service"
)

// Server represents the MCP server
type Server struct {
	service   *service.AssessmentService
	mcpServer *mcp.Server
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewServer creates a new MCP server over the assessment service.
func NewServer(svc *service.AssessmentService, cfg domain.MCPConfig, logger *logrus.Logger) *Server {
	name := cfg.ServerName
	if name == "" {
		name = "clinical-assessment-engine"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "1.0.0"
	}

	serverInfo := &mcp.Implementation{
		Name:    name,
		Version: version,
	}

	s := &Server{
		service:   svc,
		mcpServer: mcp.NewServer(serverInfo, nil),
		timeout:   cfg.RequestTimeout,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// registerTools registers every assessment tool with the MCP SDK.
func (s *Server) registerTools() {
	tools := s.tools()
	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, s.adapt(t.tool.Name, t.handler))
		s.logger.WithField("tool_name", t.tool.Name).Debug("Registered MCP tool")
	}
	s.logger.WithField("tool_count", len(tools)).Info("Successfully registered all tools")
}

// adapt turns a tool handler into an SDK handler, applying the request timeout and
// logging the call.
func (s *Server) adapt(name string, h toolHandler) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		start := time.Now()
		result, err := h(ctx, req.Params.Arguments)
		s.logger.WithFields(logrus.Fields{
			"tool":     name,
			"is_error": result != nil && result.IsError,
			"duration": time.Since(start),
		}).Info("Tool invoked")
		return result, err
	}
}

// Run serves MCP over the given transport until ctx is cancelled or the peer disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// RunStdio serves MCP over stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	return s.Run(ctx, &mcp.StdioTransport{})
}
