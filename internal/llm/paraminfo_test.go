package llm

import "testing"

func TestParamInfoFromJSONSchemaBasicTypes(t *testing.T) {
	node := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":  map[string]any{"type": "string", "description": "file path"},
			"count": map[string]any{"type": "integer"},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"path"},
	}

	info, err := paramInfoFromJSONSchema(node)
	if err != nil {
		t.Fatal(err)
	}

	path, ok := info.SubParams["path"]
	if !ok {
		t.Fatalf("missing path param: %+v", info.SubParams)
	}
	if !path.Required {
		t.Fatalf("path should be required")
	}
	if path.Desc != "file path" {
		t.Fatalf("description not propagated: %q", path.Desc)
	}

	tags, ok := info.SubParams["tags"]
	if !ok || tags.ElemInfo == nil {
		t.Fatalf("tags array element info missing: %+v", info.SubParams["tags"])
	}
}

func TestToToolSchemasFlattensNestedDefs(t *testing.T) {
	type Inner struct {
		Path string `json:"path"`
	}
	type Args struct {
		Target Inner `json:"target"`
	}

	defs := []ToolDef{{Name: "edit", Description: "edit a file", Args: Args{}}}
	schemas, err := ToToolSchemas(defs)
	if err != nil {
		t.Fatal(err)
	}
	if len(schemas) != 1 {
		t.Fatalf("expected one schema, got %d", len(schemas))
	}
	if _, hasDefs := schemas[0].Parameters["$defs"]; hasDefs {
		t.Fatalf("expected $defs flattened away: %v", schemas[0].Parameters)
	}
}
