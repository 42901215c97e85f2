package tool

// Parameter type literals accepted in tool schemas.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeAny     = "any"
)

var validParameterTypes = map[string]struct{}{
	TypeString:  {},
	TypeInteger: {},
	TypeNumber:  {},
	TypeBoolean: {},
	TypeArray:   {},
	TypeObject:  {},
	TypeAny:     {},
}

// Schema is the declarative description of one callable tool.
// It is built once at startup and never mutated afterwards.
type Schema struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  []Parameter `json:"parameters"`
}

// Parameter describes one named argument accepted by a tool.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

// Parameter returns the declared parameter with the given name.
func (s Schema) Parameter(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Required returns the names of required parameters in declaration order.
func (s Schema) Required() []string {
	names := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// JSONSchema renders the parameters as a JSON-schema object, the form
// agent frameworks expect for function/tool definitions.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Parameters))
	for _, p := range s.Parameters {
		prop := map[string]any{}
		if p.Type != "" && p.Type != TypeAny {
			prop["type"] = p.Type
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   s.Required(),
	}
}

func isValidParameterType(typeName string) bool {
	_, ok := validParameterTypes[typeName]
	return ok
}
