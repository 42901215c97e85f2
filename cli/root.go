// Package cli implements the sfmctools command line.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/petal-labs/sfmctools/config"
	"github.com/petal-labs/sfmctools/sfmc"
	"github.com/petal-labs/sfmctools/tool"
)

// Options carries process-level dependencies into the command tree.
type Options struct {
	Version string
	// HTTPClient overrides the shared adapter client; nil uses the pool.
	HTTPClient *http.Client
	// Secrets resolves keyring: references; nil uses the OS keychain.
	Secrets config.SecretResolver
}

// NewRootCmd builds the full sfmctools command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Secrets == nil {
		opts.Secrets = config.KeyringSecrets
	}

	root := &cobra.Command{
		Use:   "sfmctools",
		Short: "Salesforce Marketing Cloud tool adapters",
		Long:  "sfmctools exposes Salesforce Marketing Cloud auth API calls as agent-callable tools over a CLI, an HTTP API and MCP.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to sfmctools.yaml")
	root.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	root.PersistentFlags().BoolP("quiet", "", false, "Suppress all output except errors")
	root.PersistentFlags().String("log-format", "text", "Log format: text | json")

	root.Version = opts.Version
	root.SetVersionTemplate(fmt.Sprintf("sfmctools version %s\n", opts.Version))

	root.AddCommand(newToolsCmd(&opts))
	root.AddCommand(newServeCmd(&opts))
	root.AddCommand(newMCPCmd(&opts))
	root.AddCommand(newSecretsCmd())
	return root
}

// runtimeEnv is what every command that touches tools needs.
type runtimeEnv struct {
	cfg        config.File
	configPath string
	logger     *slog.Logger
	registry   *tool.Registry
}

func loadRuntime(cmd *cobra.Command, opts *Options) (*runtimeEnv, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	explicit, _ := cmd.Flags().GetString("config")
	cfg, path, err := config.Resolve(explicit, opts.Secrets)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, exitError(exitFileNotFound, "%v", err)
		}
		return nil, exitError(exitValidation, "loading config: %v", err)
	}
	if path != "" {
		logger.Debug("loaded config",
			"path", path,
			"sfmc", tool.MaskSensitiveValues(cfg.SFMC.ToolConfig().Values(), sfmc.ValueAccessToken),
		)
	}

	httpOpts := []tool.HTTPOption{tool.WithLogger(logger)}
	if opts.HTTPClient != nil {
		httpOpts = append(httpOpts, tool.WithHTTPClient(opts.HTTPClient))
	}
	registry, err := sfmc.NewRegistry(cfg.SFMC.ToolConfig(), httpOpts...)
	if err != nil {
		return nil, exitError(exitRuntime, "building tool registry: %v", err)
	}

	return &runtimeEnv{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		registry:   registry,
	}, nil
}
