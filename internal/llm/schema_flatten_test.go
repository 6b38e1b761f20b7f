package llm

import "testing"

func TestFlattenJSONSchemaResolvesRefs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"target": map[string]any{"$ref": "#/$defs/Target"},
		},
		"$defs": map[string]any{
			"Target": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
				},
			},
		},
	}

	flat := FlattenJSONSchema(schema)

	if _, ok := flat["$defs"]; ok {
		t.Fatalf("flattened schema still carries $defs: %v", flat)
	}

	props, ok := flat["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing or wrong type: %v", flat)
	}
	target, ok := props["target"].(map[string]any)
	if !ok {
		t.Fatalf("target property missing or wrong type: %v", props)
	}
	if _, hasRef := target["$ref"]; hasRef {
		t.Fatalf("target still has $ref: %v", target)
	}
	if target["type"] != "object" {
		t.Fatalf("target not resolved to its definition: %v", target)
	}
}

func TestFlattenJSONSchemaIdempotent(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}

	once := FlattenJSONSchema(schema)
	onceJSON, err := marshalRoundTrip(once)
	if err != nil {
		t.Fatal(err)
	}

	twice := FlattenJSONSchema(once)
	twiceJSON, err := marshalRoundTrip(twice)
	if err != nil {
		t.Fatal(err)
	}

	if onceJSON != twiceJSON {
		t.Fatalf("flattening is not idempotent: %s != %s", onceJSON, twiceJSON)
	}
}

func TestFlattenJSONSchemaUnresolvableRefLeftAsIs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"thing": map[string]any{"$ref": "#/$defs/Missing"},
		},
	}

	flat := FlattenJSONSchema(schema)
	props := flat["properties"].(map[string]any)
	thing := props["thing"].(map[string]any)
	if thing["$ref"] != "#/$defs/Missing" {
		t.Fatalf("expected unresolvable ref preserved, got %v", thing)
	}
}

func TestFlattenToolSchemasPreservesOrder(t *testing.T) {
	tools := []ToolSchema{
		{Name: "a", Parameters: map[string]any{"type": "object"}},
		{Name: "b", Parameters: map[string]any{"type": "object"}},
	}
	flat := FlattenToolSchemas(tools)
	if len(flat) != 2 || flat[0].Name != "a" || flat[1].Name != "b" {
		t.Fatalf("order not preserved: %+v", flat)
	}
}
