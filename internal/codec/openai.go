package codec

import (
	"encoding/json"
	"fmt"

	"github.com/acontext-run/runtime/pkg/types"
)

// openAIMessage mirrors the OpenAI chat-completions message shape: a text
// turn carries content, an assistant turn proposing calls carries
// tool_calls, and a tool turn answering one carries tool_call_id.
type openAIMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type openAICodec struct{}

func (openAICodec) Encode(messages []types.Message) (json.RawMessage, error) {
	out := make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		for _, p := range m.Parts {
			switch p.Type {
			case types.PartText:
				out = append(out, openAIMessage{Role: m.Role, Content: p.Text})
			case types.PartToolCall:
				out = append(out, openAIMessage{
					Role: m.Role,
					ToolCalls: []openAIToolCall{{
						ID:   p.ToolCallID,
						Type: "function",
						Function: openAIToolFunction{
							Name:      p.ToolName,
							Arguments: p.ToolInput,
						},
					}},
				})
			case types.PartToolResult:
				out = append(out, openAIMessage{
					Role:       "tool",
					Content:    p.ToolOutput,
					ToolCallID: p.ToolCallID,
				})
			}
		}
	}
	return json.Marshal(out)
}

func (openAICodec) Decode(raw json.RawMessage) ([]types.Part, error) {
	var msgs []openAIMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("codec: decode openai messages: %w", err)
	}

	var parts []types.Part
	for _, m := range msgs {
		switch {
		case m.ToolCallID != "":
			parts = append(parts, types.Part{
				Type:       types.PartToolResult,
				ToolCallID: m.ToolCallID,
				ToolOutput: m.Content,
			})
		case len(m.ToolCalls) > 0:
			for _, tc := range m.ToolCalls {
				parts = append(parts, types.Part{
					Type:       types.PartToolCall,
					ToolCallID: tc.ID,
					ToolName:   tc.Function.Name,
					ToolInput:  tc.Function.Arguments,
				})
			}
		default:
			parts = append(parts, types.Part{Type: types.PartText, Text: m.Content})
		}
	}
	return parts, nil
}
