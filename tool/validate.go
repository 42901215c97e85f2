package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

var toolNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// Severity defines diagnostic severity produced by validators.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a structured validation finding.
type Diagnostic struct {
	Field    string   `json:"field,omitempty"`
	Code     string   `json:"code,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Diagnostics aggregates findings from one validation pass.
type Diagnostics []Diagnostic

// HasErrors returns true when at least one error-severity diagnostic exists.
func (d Diagnostics) HasErrors() bool {
	for _, diag := range d {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (d Diagnostics) Errors() Diagnostics {
	out := make(Diagnostics, 0, len(d))
	for _, diag := range d {
		if diag.Severity == SeverityError {
			out = append(out, diag)
		}
	}
	return out
}

// ArgumentError is returned by the calling layer when invocation arguments
// do not satisfy the tool schema. The adapter is never reached in that case.
type ArgumentError struct {
	Tool        string      `json:"tool"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

func (e *ArgumentError) Error() string {
	if e == nil {
		return ""
	}
	msgs := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		msgs = append(msgs, d.Message)
	}
	return fmt.Sprintf("tool: invalid arguments for %q: %s", e.Tool, strings.Join(msgs, "; "))
}

// ValidateSchema checks a schema before it is accepted by a registry.
func ValidateSchema(schema Schema) Diagnostics {
	diags := make(Diagnostics, 0)

	name := strings.TrimSpace(schema.Name)
	switch {
	case name == "":
		diags = append(diags, Diagnostic{
			Field:    "name",
			Code:     "NAME_REQUIRED",
			Severity: SeverityError,
			Message:  "tool name is required",
		})
	case !toolNamePattern.MatchString(name):
		diags = append(diags, Diagnostic{
			Field:    "name",
			Code:     "INVALID_NAME",
			Severity: SeverityError,
			Message:  fmt.Sprintf("tool name %q must match %s", name, toolNamePattern.String()),
		})
	}

	if strings.TrimSpace(schema.Description) == "" {
		diags = append(diags, Diagnostic{
			Field:    "description",
			Code:     "DESCRIPTION_EMPTY",
			Severity: SeverityWarning,
			Message:  "tool description is empty; agents rely on it to choose tools",
		})
	}

	seen := make(map[string]struct{}, len(schema.Parameters))
	for i, p := range schema.Parameters {
		field := fmt.Sprintf("parameters[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			diags = append(diags, Diagnostic{
				Field:    field + ".name",
				Code:     "NAME_REQUIRED",
				Severity: SeverityError,
				Message:  "parameter name is required",
			})
			continue
		}
		if _, dup := seen[p.Name]; dup {
			diags = append(diags, Diagnostic{
				Field:    field + ".name",
				Code:     "DUPLICATE_PARAMETER",
				Severity: SeverityError,
				Message:  fmt.Sprintf("parameter %q is declared more than once", p.Name),
			})
		}
		seen[p.Name] = struct{}{}
		if !isValidParameterType(p.Type) {
			diags = append(diags, Diagnostic{
				Field:    field + ".type",
				Code:     "INVALID_TYPE",
				Severity: SeverityError,
				Message:  fmt.Sprintf("unsupported type %q; allowed: string, integer, number, boolean, array, object, any", p.Type),
			})
		}
	}
	return diags
}

// ValidateArgs checks invocation arguments against a schema: every required
// parameter must be present and non-null, and present values must match
// their declared type. Undeclared arguments produce warnings only.
func ValidateArgs(schema Schema, args Args) Diagnostics {
	diags := make(Diagnostics, 0)

	for _, p := range schema.Parameters {
		value, ok := args[p.Name]
		if !ok || value == nil {
			if p.Required {
				diags = append(diags, Diagnostic{
					Field:    p.Name,
					Code:     "REQUIRED_PARAMETER_MISSING",
					Severity: SeverityError,
					Message:  fmt.Sprintf("required parameter %q is missing", p.Name),
				})
			}
			continue
		}
		if !valueMatchesType(p.Type, value) {
			diags = append(diags, Diagnostic{
				Field:    p.Name,
				Code:     "TYPE_MISMATCH",
				Severity: SeverityError,
				Message:  fmt.Sprintf("parameter %q must be of type %s, got %T", p.Name, p.Type, value),
			})
		}
	}

	for _, name := range args.Names() {
		if _, declared := schema.Parameter(name); !declared {
			diags = append(diags, Diagnostic{
				Field:    name,
				Code:     "UNKNOWN_PARAMETER",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("parameter %q is not declared by %s", name, schema.Name),
			})
		}
	}
	return diags
}

func valueMatchesType(typeName string, value any) bool {
	switch typeName {
	case TypeAny, "":
		return true
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == math.Trunc(v)
		case float32:
			return float64(v) == math.Trunc(float64(v))
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case TypeNumber:
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		case json.Number:
			_, err := v.Float64()
			return err == nil
		}
		return false
	case TypeArray:
		switch value.(type) {
		case []any, []string, []int, []float64, []map[string]any:
			return true
		}
		return false
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}
