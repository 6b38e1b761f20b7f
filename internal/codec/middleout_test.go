package codec

import (
	"testing"

	"github.com/acontext-run/runtime/pkg/types"
)

func textMsg(id, role, text string) types.Message {
	return types.Message{ID: id, Role: role, Parts: []types.Part{{Type: types.PartText, Text: text}}}
}

func TestApplyMiddleOutBelowTwoMessagesUnchanged(t *testing.T) {
	msgs := []types.Message{textMsg("1", "user", "hi")}
	got := ApplyMiddleOut(msgs, 1)
	if len(got) != 1 {
		t.Fatalf("expected single message preserved, got %d", len(got))
	}

	pair := []types.Message{textMsg("1", "user", "hi"), textMsg("2", "assistant", "hello")}
	got = ApplyMiddleOut(pair, 0)
	if len(got) != 2 {
		t.Fatalf("middle_out({m0,m1}) must equal {m0,m1}, got %d messages", len(got))
	}
}

func TestApplyMiddleOutKeepsHeadAndTail(t *testing.T) {
	var msgs []types.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, textMsg(string(rune('a'+i)), "user", "this is a reasonably long filler message to accumulate tokens"))
	}

	got := ApplyMiddleOut(msgs, 300)

	if len(got) >= len(msgs) {
		t.Fatalf("expected trimming to reduce message count, got %d of %d", len(got), len(msgs))
	}
	if got[0].ID != msgs[0].ID || got[1].ID != msgs[1].ID {
		t.Fatalf("expected first two messages preserved, got %v", got[:2])
	}
	n := len(got)
	if got[n-1].ID != msgs[len(msgs)-1].ID || got[n-2].ID != msgs[len(msgs)-2].ID {
		t.Fatalf("expected last two messages preserved, got %v", got[n-2:])
	}
}

func TestApplyMiddleOutEvenCountDropsRightMiddleFirst(t *testing.T) {
	filler := "this filler text is long enough to accumulate estimated tokens"
	msgs := []types.Message{
		textMsg("m0", "user", filler),
		textMsg("m1", "user", filler),
		textMsg("m2", "user", filler),
		textMsg("m3", "user", filler),
	}

	got := ApplyMiddleOut(msgs, 15)

	if len(got) != 2 {
		t.Fatalf("expected exactly 2 messages to survive an aggressive budget on a 4-message list, got %d: %v", len(got), ids(got))
	}
	if got[0].ID != "m0" || got[1].ID != "m3" {
		t.Fatalf("expected {m0, m3} to survive (m2 dropped first, then m1), got %v", ids(got))
	}
}

func ids(msgs []types.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestApplyMiddleOutKeepsToolPairsAtomic(t *testing.T) {
	head1 := textMsg("h1", "user", "start of conversation")
	head2 := textMsg("h2", "assistant", "acknowledged")
	toolCall := types.Message{
		ID:   "tc",
		Role: "assistant",
		Parts: []types.Part{{
			Type: types.PartToolCall, ToolCallID: "call_1", ToolName: "disk.list",
			ToolInput: []byte(`{}`),
		}},
	}
	toolResult := types.Message{
		ID:   "tr",
		Role: "tool",
		Parts: []types.Part{{
			Type: types.PartToolResult, ToolCallID: "call_1", ToolOutput: "a very long listing of files that should count for a lot of tokens here",
		}},
	}
	noise := textMsg("n1", "user", "some unrelated filler text that just takes up space in the middle")
	tail1 := textMsg("t1", "assistant", "wrapping up")
	tail2 := textMsg("t2", "user", "thanks")

	msgs := []types.Message{head1, head2, toolCall, toolResult, noise, tail1, tail2}

	got := ApplyMiddleOut(msgs, 10)

	hasCall, hasResult := false, false
	for _, m := range got {
		if m.ID == "tc" {
			hasCall = true
		}
		if m.ID == "tr" {
			hasResult = true
		}
	}
	if hasCall != hasResult {
		t.Fatalf("tool call/result pair split across trim: call=%v result=%v", hasCall, hasResult)
	}
}
