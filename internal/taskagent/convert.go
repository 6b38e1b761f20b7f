package taskagent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/acontext-run/runtime/pkg/types"
)

// toEinoMessage converts one stored message into eino's schema.Message,
// the same role/content/tool_calls shape the teacher's
// internal/provider.ConvertToEinoMessages produces, generalized to this
// domain's Part union (text / tool_call / tool_result) instead of
// opencode's editor-tool parts.
func toEinoMessage(m *types.Message) *schema.Message {
	role := schema.User
	switch m.Role {
	case "assistant":
		role = schema.Assistant
	case "system":
		role = schema.System
	case "tool":
		role = schema.Tool
	}

	out := &schema.Message{Role: role}
	var text strings.Builder
	var toolCallID string

	for _, p := range m.Parts {
		switch p.Type {
		case types.PartText:
			text.WriteString(p.Text)
		case types.PartToolCall:
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID: p.ToolCallID,
				Function: schema.FunctionCall{
					Name:      p.ToolName,
					Arguments: string(p.ToolInput),
				},
			})
		case types.PartToolResult:
			toolCallID = p.ToolCallID
			if p.ToolError {
				text.WriteString("Error: ")
			}
			text.WriteString(p.ToolOutput)
		}
	}

	out.Content = text.String()
	if toolCallID != "" {
		out.ToolCallID = toolCallID
	}
	return out
}

// renderSystemPrompt summarizes the session's current task list and
// pending message ids for the model, grounded on the task fields spec.md
// §3 names (order, status, description, progresses, user preference).
func renderSystemPrompt(tc *TaskCtx) string {
	var b strings.Builder
	b.WriteString("You are the task-bucketing agent for a conversational session. ")
	b.WriteString("Use the provided tools to bucket pending messages into tasks, track progress, ")
	b.WriteString("and transition task status. Call finish() once no further tool calls are needed.\n\n")

	orders := tc.Orders()
	if len(orders) == 0 {
		b.WriteString("Current tasks: none yet.\n")
	} else {
		b.WriteString("Current tasks:\n")
		for _, order := range orders {
			t, _ := tc.TaskByOrder(order)
			fmt.Fprintf(&b, "- order=%d status=%s description=%q progresses=%d\n",
				t.Order, t.Status, t.Data.TaskDescription, len(t.Data.Progresses))
		}
	}

	b.WriteString("\nPending message ids (oldest first): ")
	b.WriteString(strings.Join(tc.PendingMessageIDs, ", "))
	b.WriteString("\n")
	return b.String()
}

// toolResultMessage builds the schema.Message the loop appends after
// dispatching one tool call, carrying its textual result back to the model.
func toolResultMessage(toolCallID, content string) *schema.Message {
	return &schema.Message{Role: schema.Tool, Content: content, ToolCallID: toolCallID}
}

// assistantToolCallMessage replays the model's own tool-call message back
// into the running conversation so the next completion call sees it (eino
// chat models require the assistant turn that issued a tool call to
// precede its tool result, same as OpenAI/Anthropic's own wire contract).
func assistantToolCallMessage(resp *schema.Message) *schema.Message {
	return resp
}

// marshalArgs re-encodes a tool call's arguments as json.RawMessage for
// dispatchTool, tolerating eino's string-encoded Arguments field.
func marshalArgs(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}
