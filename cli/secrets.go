package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/sfmctools/config"
)

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage keychain secrets referenced as keyring:<name>",
	}
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from --value or the first line of stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return exitError(exitValidation, "secret name must not be empty")
			}
			value, _ := cmd.Flags().GetString("value")
			if value == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return exitError(exitInputParse, "reading secret from stdin: %v", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return exitError(exitValidation, "secret value must not be empty")
			}
			if err := config.StoreSecret(name, value); err != nil {
				return exitError(exitRuntime, "storing secret: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %q in keychain service %q; reference it as keyring:%s\n", name, config.KeyringService, name)
			return nil
		},
	}
	set.Flags().String("value", "", "Secret value (default: read stdin)")
	cmd.AddCommand(set)
	return cmd
}
