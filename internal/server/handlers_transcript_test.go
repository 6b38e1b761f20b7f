package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acontext-run/runtime/pkg/types"
)

func msgWithID(id string) *types.Message {
	return &types.Message{ID: id, Role: "user", Parts: []types.Part{{Type: types.PartText, Text: id}}}
}

func TestPaginateMessagesFirstPage(t *testing.T) {
	all := []*types.Message{msgWithID("a"), msgWithID("b"), msgWithID("c")}

	page, next := paginateMessages(all, "", 2)
	require.Len(t, page, 2)
	require.Equal(t, "a", page[0].ID)
	require.Equal(t, "b", page[1].ID)
	require.Equal(t, "b", next)
}

func TestPaginateMessagesSubsequentPage(t *testing.T) {
	all := []*types.Message{msgWithID("a"), msgWithID("b"), msgWithID("c")}

	page, next := paginateMessages(all, "b", 2)
	require.Len(t, page, 1)
	require.Equal(t, "c", page[0].ID)
	require.Empty(t, next)
}

func TestPaginateMessagesCursorAtEnd(t *testing.T) {
	all := []*types.Message{msgWithID("a"), msgWithID("b")}

	page, next := paginateMessages(all, "b", 2)
	require.Empty(t, page)
	require.Empty(t, next)
}

func TestApplyEditStrategiesUnknownTypePassesThrough(t *testing.T) {
	page := []*types.Message{msgWithID("a"), msgWithID("b")}
	out, err := applyEditStrategies(page, []editStrategyRequest{{Type: "unknown"}})
	require.NoError(t, err)
	require.Equal(t, page, out)
}

func TestApplyEditStrategiesMiddleOutRequiresTokenBudget(t *testing.T) {
	page := []*types.Message{msgWithID("a"), msgWithID("b")}
	_, err := applyEditStrategies(page, []editStrategyRequest{{Type: "middle_out"}})
	require.ErrorIs(t, err, errInvalidTokenReduceTo)
}

func TestApplyEditStrategiesMiddleOutTrims(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "word "
	}
	page := []*types.Message{
		msgWithID("a"),
		msgWithID("b"),
		{ID: "c", Role: "user", Parts: []types.Part{{Type: types.PartText, Text: long}}},
		{ID: "d", Role: "assistant", Parts: []types.Part{{Type: types.PartText, Text: long}}},
		msgWithID("e"),
		msgWithID("f"),
	}

	params, err := json.Marshal(map[string]int{"token_reduce_to": 10})
	require.NoError(t, err)

	out, err := applyEditStrategies(page, []editStrategyRequest{{Type: "middle_out", Params: params}})
	require.NoError(t, err)
	require.Less(t, len(out), len(page))
	require.Equal(t, "a", out[0].ID)
	require.Equal(t, "f", out[len(out)-1].ID)
}
