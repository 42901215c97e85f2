package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/petal-labs/sfmctools/agenttools"
	"github.com/petal-labs/sfmctools/tool"
)

func newToolsCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List, inspect and invoke tools",
	}
	cmd.AddCommand(newToolsListCmd(opts))
	cmd.AddCommand(newToolsInspectCmd(opts))
	cmd.AddCommand(newToolsInvokeCmd(opts))
	return cmd
}

func newToolsListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadRuntime(cmd, opts)
			if err != nil {
				return err
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(writer, "NAME\tPARAMETERS\tDESCRIPTION")
			for _, schema := range env.registry.ListSchemas() {
				fmt.Fprintf(writer, "%s\t%s\t%s\n", schema.Name, parameterSummary(schema), schema.Description)
			}
			return writer.Flush()
		},
	}
}

func parameterSummary(schema tool.Schema) string {
	if len(schema.Parameters) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(schema.Parameters))
	for _, p := range schema.Parameters {
		part := p.Name
		if p.Required {
			part += "*"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ",")
}

func newToolsInspectCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show a tool definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadRuntime(cmd, opts)
			if err != nil {
				return err
			}
			adapter, ok := env.registry.Lookup(strings.TrimSpace(args[0]))
			if !ok {
				return exitError(exitNotFound, "tool %q is not registered", args[0])
			}
			schema := adapter.Schema()

			format, _ := cmd.Flags().GetString("format")
			var doc any
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "", "json":
				doc = map[string]any{
					"name":        schema.Name,
					"description": schema.Description,
					"parameters":  schema.JSONSchema(),
				}
			case "openai":
				doc = agenttools.OpenAITools([]tool.Schema{schema})[0]
			case "anthropic":
				doc = agenttools.AnthropicTools([]tool.Schema{schema})[0]
			default:
				return exitError(exitValidation, "unknown --format %q (want json, openai or anthropic)", format)
			}
			return writeIndentedJSON(cmd, doc)
		},
	}
	cmd.Flags().String("format", "json", "Output format: json | openai | anthropic")
	return cmd
}

func newToolsInvokeCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <name>",
		Short: "Invoke a tool once and print its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToolsInvoke(cmd, opts, strings.TrimSpace(args[0]))
		},
	}
	cmd.Flags().StringArray("arg", nil, "Tool argument KEY=VALUE (repeatable)")
	cmd.Flags().String("args-json", "", "Tool arguments as a JSON object")
	cmd.Flags().Duration("timeout", 0, "Invocation timeout (default: tool timeout)")
	return cmd
}

func runToolsInvoke(cmd *cobra.Command, opts *Options, name string) error {
	env, err := loadRuntime(cmd, opts)
	if err != nil {
		return err
	}
	adapter, ok := env.registry.Lookup(name)
	if !ok {
		return exitError(exitNotFound, "tool %q is not registered", name)
	}

	argsJSON, _ := cmd.Flags().GetString("args-json")
	pairs, _ := cmd.Flags().GetStringArray("arg")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout < 0 {
		return exitError(exitValidation, "--timeout must not be negative")
	}

	toolArgs, err := parseInvokeArgs(adapter.Schema(), argsJSON, pairs)
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}

	inv := tool.Invocation{Args: toolArgs, RequestID: uuid.NewString(), Timeout: timeout}
	result, err := env.registry.Invoke(cmd.Context(), name, inv)
	if err != nil {
		var argErr *tool.ArgumentError
		if errors.As(err, &argErr) {
			for _, diag := range argErr.Diagnostics {
				fmt.Fprintf(cmd.ErrOrStderr(), "  [%s] %s: %s\n", diag.Code, diag.Field, diag.Message)
			}
			return exitError(exitValidation, "invalid arguments for %s", name)
		}
		return exitError(exitRuntime, "%v", err)
	}

	if err := writeIndentedJSON(cmd, result); err != nil {
		return err
	}
	if !result.OK() {
		return exitError(exitToolFailed, "%s", result.Err.Message)
	}
	return nil
}

// parseInvokeArgs merges --args-json with --arg pairs; pairs win. Pair
// values are coerced to the declared parameter type.
func parseInvokeArgs(schema tool.Schema, argsJSON string, pairs []string) (tool.Args, error) {
	args := tool.Args{}
	if trimmed := strings.TrimSpace(argsJSON); trimmed != "" {
		decoder := json.NewDecoder(strings.NewReader(trimmed))
		decoder.UseNumber()
		if err := decoder.Decode(&args); err != nil {
			return nil, fmt.Errorf("--args-json must be a JSON object: %w", err)
		}
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--arg %q must be KEY=VALUE", pair)
		}
		value, err := coerceArg(schema, key, raw)
		if err != nil {
			return nil, fmt.Errorf("--arg %s: %w", key, err)
		}
		args[key] = value
	}
	return args, nil
}

func coerceArg(schema tool.Schema, name, raw string) (any, error) {
	param, ok := schema.Parameter(name)
	if !ok {
		return raw, nil
	}
	switch param.Type {
	case tool.TypeInteger:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case tool.TypeNumber:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case tool.TypeBoolean:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case tool.TypeArray, tool.TypeObject:
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("expected JSON %s: %w", param.Type, err)
		}
		return value, nil
	case tool.TypeAny:
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err == nil {
			return value, nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func writeIndentedJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return exitError(exitRuntime, "encoding output: %v", err)
	}
	return nil
}
