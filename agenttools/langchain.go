package agenttools

import (
	"context"

	"github.com/tmc/langchaingo/tools"

	"github.com/petal-labs/sfmctools/tool"
)

// LangchainTool adapts one registered tool to langchaingo's tools.Tool.
type LangchainTool struct {
	registry *tool.Registry
	schema   tool.Schema
}

var _ tools.Tool = (*LangchainTool)(nil)

// LangchainTools wraps every registered tool for langchaingo agents.
func LangchainTools(reg *tool.Registry) []tools.Tool {
	schemas := reg.ListSchemas()
	out := make([]tools.Tool, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, &LangchainTool{registry: reg, schema: s})
	}
	return out
}

func (t *LangchainTool) Name() string {
	return t.schema.Name
}

// Description includes the argument list, since langchaingo agents only
// see the text.
func (t *LangchainTool) Description() string {
	return describe(t.schema)
}

// Call takes a JSON object of arguments and returns the Result JSON.
func (t *LangchainTool) Call(ctx context.Context, input string) (string, error) {
	return Dispatch(ctx, t.registry, t.schema.Name, input)
}
