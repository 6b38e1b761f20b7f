package llm

import "encoding/json"

// FlattenJSONSchema resolves every "$ref": "#/$defs/Name" in schema against
// its own "$defs" map, substituting a deep copy of the referenced
// definition and recursing into the result, and drops the top-level
// "$defs", so every resolvable $ref is gone from the returned schema. A
// $ref that does not name an entry in "$defs" is left in place as it is.
// Ported from the original system's flatten_json_schema/flatten_tool_schemas:
// providers that reject $ref (several tool-calling APIs require a flat
// parameters object) can then be handed the result directly.
//
// The algorithm is idempotent: running it twice on an already-flat schema
// returns an identical structure. It works on map[string]any, so the
// original key order of object-valued schemas is not kept; encoding/json
// writes the keys of the result in sorted order.
func FlattenJSONSchema(schema map[string]any) map[string]any {
	defs, _ := schema["$defs"].(map[string]any)

	working := deepCopyMap(schema)
	delete(working, "$defs")

	return resolveRefs(working, defs).(map[string]any)
}

// FlattenToolSchemas applies FlattenJSONSchema to every schema in tools and
// returns the results as a slice in the same order as the input.
func FlattenToolSchemas(tools []ToolSchema) []ToolSchema {
	out := make([]ToolSchema, len(tools))
	for i, t := range tools {
		out[i] = ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  FlattenJSONSchema(t.Parameters),
		}
	}
	return out
}

// ToolSchema is a tool's name/description/parameters triple, the unit
// FlattenToolSchemas operates on.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func resolveRefs(node any, defs map[string]any) any {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			defName, found := defNameFromRef(ref)
			if found {
				if def, ok := defs[defName]; ok {
					return resolveRefs(deepCopy(def), defs)
				}
			}
			// Unresolvable ref: leave as-is rather than panic, matching
			// the original's "skip what it can't find" behavior.
			return v
		}

		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = resolveRefs(val, defs)
		}
		return out

	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = resolveRefs(val, defs)
		}
		return out

	default:
		return v
	}
}

// defNameFromRef extracts "Name" from "#/$defs/Name" references; any other
// shape is reported as not found.
func defNameFromRef(ref string) (string, bool) {
	const prefix = "#/$defs/"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return "", false
	}
	return ref[len(prefix):], true
}

func deepCopy(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return deepCopyMap(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

// marshalRoundTrip is used by tests to compare flattened schemas by their
// canonical JSON form rather than Go map identity.
func marshalRoundTrip(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
