// Package agenttools binds the tool registry to LLM agent frameworks.
//
// OpenAITools and AnthropicTools render tool definitions for chat
// completion requests; Dispatch answers the resulting tool calls. The
// langchaingo binding wraps the same dispatch behind tools.Tool.
package agenttools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/openai/openai-go"

	"github.com/petal-labs/sfmctools/tool"
)

// OpenAITools renders schemas as OpenAI chat completion tool definitions.
func OpenAITools(schemas []tool.Schema) []openai.ChatCompletionToolParam {
	if len(schemas) == 0 {
		return nil
	}
	result := make([]openai.ChatCompletionToolParam, len(schemas))
	for i, s := range schemas {
		result[i] = openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  openai.FunctionParameters(s.JSONSchema()),
			},
		}
	}
	return result
}

// AnthropicTools renders schemas as Anthropic messages tool definitions.
func AnthropicTools(schemas []tool.Schema) []anthropic.ToolUnionParam {
	if len(schemas) == 0 {
		return nil
	}
	result := make([]anthropic.ToolUnionParam, len(schemas))
	for i, s := range schemas {
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.JSONSchema()["properties"],
					Required:   s.Required(),
				},
			},
		}
	}
	return result
}

// Dispatch answers one model tool call. arguments is the JSON object the
// model produced; an empty string means no arguments. The returned string
// is the Result JSON to feed back to the model. Errors are returned only
// for calls the registry refuses (unknown tool, invalid arguments).
func Dispatch(ctx context.Context, reg *tool.Registry, name, arguments string) (string, error) {
	args := tool.Args{}
	if trimmed := strings.TrimSpace(arguments); trimmed != "" {
		decoder := json.NewDecoder(strings.NewReader(trimmed))
		decoder.UseNumber()
		if err := decoder.Decode(&args); err != nil {
			return "", fmt.Errorf("agenttools: arguments for %q must be a JSON object: %w", name, err)
		}
	}

	result, err := reg.Invoke(ctx, name, tool.Invocation{Args: args, RequestID: uuid.NewString()})
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("agenttools: encoding result of %q: %w", name, err)
	}
	return string(out), nil
}
