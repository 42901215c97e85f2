package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

// newLogger builds the process logger from the global flags. Logs go to
// stderr so command output on stdout stays machine readable.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	format, _ := cmd.Flags().GetString("log-format")
	if verbose && quiet {
		return nil, exitError(exitValidation, "--verbose and --quiet are mutually exclusive")
	}

	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)), nil
	default:
		return nil, exitError(exitValidation, "%s", fmt.Sprintf("unknown --log-format %q (want text or json)", format))
	}
}
