package agenttools

import (
	"strings"

	"github.com/petal-labs/sfmctools/tool"
)

func describe(schema tool.Schema) string {
	var b strings.Builder
	b.WriteString(schema.Description)
	if len(schema.Parameters) == 0 {
		b.WriteString(" Input: an empty JSON object {}.")
		return b.String()
	}
	b.WriteString(" Input: a JSON object with ")
	for i, p := range schema.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(" (")
		b.WriteString(p.Type)
		if p.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
	}
	b.WriteString(".")
	return b.String()
}
