package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	sfmcotel "github.com/petal-labs/sfmctools/otel"
	"github.com/petal-labs/sfmctools/server"
	"github.com/petal-labs/sfmctools/tool"
)

func newServeCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tool HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntP("port", "p", 0, "Listen port (default: config server.port)")
	cmd.Flags().String("host", "", "Listen host (default: config server.host)")
	cmd.Flags().String("cors-origin", "", "Allowed CORS origin (default: config server.cors_origin)")
	cmd.Flags().Int64("max-body", 0, "Max request body size in bytes (default: config server.max_body)")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP trace endpoint (default: config telemetry.otlp_endpoint)")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	return cmd
}

func runServe(cmd *cobra.Command, opts *Options) error {
	env, err := loadRuntime(cmd, opts)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, env)
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")

	// Signal handling
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
		if err := shutdownTelemetry(flushCtx); err != nil {
			env.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	defer tool.CloseIdleConnections()

	apiServer := server.NewServer(server.ServerConfig{
		Registry:   env.registry,
		CORSOrigin: env.cfg.Server.CORSOrigin,
		MaxBody:    env.cfg.Server.MaxBody,
		Logger:     env.logger,
	})

	addr := net.JoinHostPort(env.cfg.Server.Host, strconv.Itoa(env.cfg.Server.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "sfmctools listening on %s (%d tools)\n", addr, env.registry.Len())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// applyServeFlags lets explicitly set flags win over the config file.
func applyServeFlags(cmd *cobra.Command, env *runtimeEnv) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		env.cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		env.cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		env.cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-body") {
		env.cfg.Server.MaxBody, _ = flags.GetInt64("max-body")
	}
	if flags.Changed("otlp-endpoint") {
		env.cfg.Telemetry.OTLPEndpoint, _ = flags.GetString("otlp-endpoint")
	}
}
