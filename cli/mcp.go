package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/sfmctools/mcpserver"
	sfmcotel "github.com/petal-labs/sfmctools/otel"
	"github.com/petal-labs/sfmctools/tool"
)

func newMCPCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over the Model Context Protocol",
		Long:  "Serve the tools over MCP on stdin/stdout, or over streamable HTTP with --http.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd, opts)
		},
	}
	cmd.Flags().String("http", "", "Serve streamable HTTP on this address instead of stdio")
	return cmd
}

func runMCP(cmd *cobra.Command, opts *Options) error {
	env, err := loadRuntime(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := sfmcotel.Setup(ctx, sfmcotel.Options{
		ServiceName:  env.cfg.Telemetry.ServiceName,
		OTLPEndpoint: env.cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return exitError(exitRuntime, "initializing telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(flushCtx)
	}()

	defer tool.CloseIdleConnections()

	s, err := mcpserver.New(env.registry, mcpserver.Options{
		Version: cmd.Root().Version,
		Logger:  env.logger,
	})
	if err != nil {
		return exitError(exitRuntime, "building mcp server: %v", err)
	}

	addr, _ := cmd.Flags().GetString("http")
	if addr = strings.TrimSpace(addr); addr != "" {
		if err := mcpserver.ServeHTTP(ctx, s, addr, env.logger); err != nil {
			return exitError(exitRuntime, "mcp server error: %v", err)
		}
		return nil
	}
	if err := mcpserver.ServeStdio(s); err != nil {
		return exitError(exitRuntime, "mcp stdio error: %v", err)
	}
	return nil
}
