package codec

import (
	"encoding/json"
	"testing"

	"github.com/acontext-run/runtime/pkg/types"
)

func TestAcontextRoundTrip(t *testing.T) {
	msgs := []types.Message{
		{ID: "m1", Role: "user", Parts: []types.Part{{Type: types.PartText, Text: "hello"}}},
	}

	c, err := For(FormatAcontext)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := c.Encode(msgs)
	if err != nil {
		t.Fatal(err)
	}

	var decoded []types.Message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Parts[0].Text != "hello" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestOpenAICodecEncodesToolCall(t *testing.T) {
	msgs := []types.Message{
		{
			ID:   "m1",
			Role: "assistant",
			Parts: []types.Part{{
				Type: types.PartToolCall, ToolCallID: "call_1", ToolName: "disk.list",
				ToolInput: json.RawMessage(`{"path":"/"}`),
			}},
		},
	}

	c, err := For(FormatOpenAI)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := c.Encode(msgs)
	if err != nil {
		t.Fatal(err)
	}

	parts, err := c.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || !parts[0].IsToolCall() || parts[0].ToolName != "disk.list" {
		t.Fatalf("unexpected decoded parts: %+v", parts)
	}
}

func TestAnthropicCodecRoundTripsToolResult(t *testing.T) {
	msgs := []types.Message{
		{
			ID:   "m1",
			Role: "tool",
			Parts: []types.Part{{
				Type: types.PartToolResult, ToolCallID: "call_1", ToolOutput: "done", ToolError: false,
			}},
		},
	}

	c, err := For(FormatAnthropic)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := c.Encode(msgs)
	if err != nil {
		t.Fatal(err)
	}
	parts, err := c.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || !parts[0].IsToolResult() || parts[0].ToolOutput != "done" {
		t.Fatalf("unexpected decoded parts: %+v", parts)
	}
}

func TestForUnknownFormat(t *testing.T) {
	if _, err := For("yaml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
