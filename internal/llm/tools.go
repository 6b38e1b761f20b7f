package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ToolDef describes one callable tool: its name, the description shown to
// the model, and a zero value of the Go struct whose json tags and
// jsonschema struct tags drive argument-schema generation.
type ToolDef struct {
	Name        string
	Description string
	Args        any
}

var reflector = &jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            false,
	AllowAdditionalProperties: false,
}

// ParametersSchema reflects d.Args into a JSON Schema object and flattens
// the $ref/$defs invopop/jsonschema emits for nested structs or slices of
// structs, returning a self-contained schema ready for a provider's
// tool-calling API.
func (d ToolDef) ParametersSchema() (map[string]any, error) {
	raw := reflector.Reflect(d.Args)
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal schema for tool %q: %w", d.Name, err)
	}

	var asMap map[string]any
	if err := json.Unmarshal(b, &asMap); err != nil {
		return nil, fmt.Errorf("llm: decode schema for tool %q: %w", d.Name, err)
	}
	return FlattenJSONSchema(asMap), nil
}

// ToToolSchemas reflects every ToolDef's Args into a flattened ToolSchema,
// preserving palette order so callers can build a stable tool-choice list.
func ToToolSchemas(defs []ToolDef) ([]ToolSchema, error) {
	out := make([]ToolSchema, 0, len(defs))
	for _, d := range defs {
		params, err := d.ParametersSchema()
		if err != nil {
			return nil, err
		}
		out = append(out, ToolSchema{Name: d.Name, Description: d.Description, Parameters: params})
	}
	return out, nil
}
