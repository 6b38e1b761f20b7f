package llm

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// toolInfosFromSchemas converts flattened JSON Schema tool parameters into
// eino's schema.ToolInfo/ParameterInfo tree, the typed shape its chat
// models bind against via WithTools.
func toolInfosFromSchemas(tools []ToolSchema) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		params, err := paramInfoFromJSONSchema(t.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.Name, err)
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params.SubParams),
		})
	}
	return infos, nil
}

// paramInfoFromJSONSchema recursively converts a JSON Schema object node
// into a synthetic root ParameterInfo whose SubParams holds the object's
// properties, so callers can hand the top-level map straight to
// schema.NewParamsOneOfByParams.
func paramInfoFromJSONSchema(node map[string]any) (*schema.ParameterInfo, error) {
	required := map[string]bool{}
	if reqList, ok := node["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	props, _ := node["properties"].(map[string]any)
	sub := make(map[string]*schema.ParameterInfo, len(props))
	for name, raw := range props {
		propSchema, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		info, err := convertSchemaNode(propSchema)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		info.Required = required[name]
		sub[name] = info
	}

	return &schema.ParameterInfo{Type: schema.Object, SubParams: sub}, nil
}

func convertSchemaNode(node map[string]any) (*schema.ParameterInfo, error) {
	info := &schema.ParameterInfo{}
	if desc, ok := node["description"].(string); ok {
		info.Desc = desc
	}

	switch jsonType(node) {
	case "string":
		info.Type = schema.String
		if enumRaw, ok := node["enum"].([]any); ok {
			for _, e := range enumRaw {
				if s, ok := e.(string); ok {
					info.Enum = append(info.Enum, s)
				}
			}
		}
	case "integer":
		info.Type = schema.Integer
	case "number":
		info.Type = schema.Number
	case "boolean":
		info.Type = schema.Boolean
	case "array":
		info.Type = schema.Array
		if items, ok := node["items"].(map[string]any); ok {
			elem, err := convertSchemaNode(items)
			if err != nil {
				return nil, err
			}
			info.ElemInfo = elem
		}
	case "object":
		nested, err := paramInfoFromJSONSchema(node)
		if err != nil {
			return nil, err
		}
		info.Type = schema.Object
		info.SubParams = nested.SubParams
	default:
		info.Type = schema.String
	}
	return info, nil
}

func jsonType(node map[string]any) string {
	if t, ok := node["type"].(string); ok {
		return t
	}
	if _, ok := node["properties"]; ok {
		return "object"
	}
	return "string"
}
