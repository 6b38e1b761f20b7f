package codec

import (
	"encoding/json"
	"fmt"

	"github.com/acontext-run/runtime/pkg/types"
)

// anthropicMessage mirrors Claude's role + content-blocks shape.
type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

// anthropicContent is a single content block: text, tool_use, or
// tool_result, discriminated by Type.
type anthropicContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicCodec struct{}

func (anthropicCodec) Encode(messages []types.Message) (json.RawMessage, error) {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropicContent, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case types.PartText:
				blocks = append(blocks, anthropicContent{Type: "text", Text: p.Text})
			case types.PartToolCall:
				blocks = append(blocks, anthropicContent{
					Type:  "tool_use",
					ID:    p.ToolCallID,
					Name:  p.ToolName,
					Input: p.ToolInput,
				})
			case types.PartToolResult:
				blocks = append(blocks, anthropicContent{
					Type:      "tool_result",
					ToolUseID: p.ToolCallID,
					Content:   p.ToolOutput,
					IsError:   p.ToolError,
				})
			}
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: blocks})
	}
	return json.Marshal(out)
}

func (anthropicCodec) Decode(raw json.RawMessage) ([]types.Part, error) {
	var msgs []anthropicMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("codec: decode anthropic messages: %w", err)
	}

	var parts []types.Part
	for _, m := range msgs {
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				parts = append(parts, types.Part{Type: types.PartText, Text: b.Text})
			case "tool_use":
				parts = append(parts, types.Part{
					Type:       types.PartToolCall,
					ToolCallID: b.ID,
					ToolName:   b.Name,
					ToolInput:  b.Input,
				})
			case "tool_result":
				parts = append(parts, types.Part{
					Type:       types.PartToolResult,
					ToolCallID: b.ToolUseID,
					ToolOutput: b.Content,
					ToolError:  b.IsError,
				})
			default:
				return nil, fmt.Errorf("codec: unknown anthropic content block %q", b.Type)
			}
		}
	}
	return parts, nil
}
