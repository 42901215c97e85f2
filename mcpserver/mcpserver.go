// Package mcpserver serves the tool registry over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/petal-labs/sfmctools/tool"
)

// Options configures New.
type Options struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

// New builds an MCP server exposing every registered tool.
func New(reg *tool.Registry, opts Options) (*server.MCPServer, error) {
	name := opts.Name
	if name == "" {
		name = "sfmctools"
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	tools, err := Tools(reg, opts.Logger)
	if err != nil {
		return nil, err
	}
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTools(tools...)
	return s, nil
}

// Tools converts the registry into MCP tool definitions with handlers.
func Tools(reg *tool.Registry, logger *slog.Logger) ([]server.ServerTool, error) {
	if reg == nil {
		return nil, errors.New("mcpserver: registry is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	schemas := reg.ListSchemas()
	out := make([]server.ServerTool, 0, len(schemas))
	for _, schema := range schemas {
		raw, err := json.Marshal(schema.JSONSchema())
		if err != nil {
			return nil, fmt.Errorf("mcpserver: encoding schema for %q: %w", schema.Name, err)
		}
		out = append(out, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(schema.Name, schema.Description, raw),
			Handler: handler(reg, schema.Name, logger),
		})
	}
	return out, nil
}

func handler(reg *tool.Registry, name string, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		inv := tool.Invocation{
			Args:      tool.Args(req.GetArguments()),
			RequestID: uuid.NewString(),
		}
		result, err := reg.Invoke(ctx, name, inv)
		if err != nil {
			logger.WarnContext(ctx, "mcp tool call rejected", "tool", name, "request_id", inv.RequestID, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
		}
		if !result.OK() {
			return mcp.NewToolResultError(string(payload)), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// ServeStdio serves s over stdin/stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// ServeHTTP serves s over streamable HTTP until ctx is cancelled.
func ServeHTTP(ctx context.Context, s *server.MCPServer, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	httpServer := server.NewStreamableHTTPServer(s)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mcp server listening", "addr", addr)
		errCh <- httpServer.Start(addr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down mcp server")
		return httpServer.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
