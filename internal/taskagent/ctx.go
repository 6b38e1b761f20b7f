// Package taskagent implements the Task Agent: an LLM-driven, multi-tool-call
// loop that reads and writes a session's task list, one transaction per
// iteration, grounded on the teacher's internal/session/loop.go runLoop
// shape (build context, call model, execute tool calls, persist, check
// termination) generalized from opencode's file-editing palette to the
// fixed 7-tool task-bucketing palette in spec.md §4.3.
package taskagent

import (
	"context"
	"fmt"

	"github.com/acontext-run/runtime/internal/storage"
	"github.com/acontext-run/runtime/pkg/types"
)

// TaskCtx is the agent's per-iteration working set: the open unit of work,
// the session's current tasks indexed by order, and the message ids still
// waiting to be bucketed. Any tool that changes task shape (insert_task,
// append_messages_to_task) invalidates it; the next step rebuilds it
// through the identical *storage.Tx so flushed-but-uncommitted writes from
// earlier in the same iteration stay visible (spec.md §9, "context rebuild
// within a transaction").
type TaskCtx struct {
	Tx        *storage.Tx
	ProjectID string
	SessionID string

	tasksByOrder map[int]*types.Task
	tasksByID    map[string]*types.Task
	orders       []int

	PendingMessageIDs []string
}

// BuildTaskCtx loads a fresh TaskCtx from tx, the DB handle threaded
// through the whole iteration (never a new transaction).
func BuildTaskCtx(ctx context.Context, tx *storage.Tx, projectID, sessionID string) (*TaskCtx, error) {
	tasks, err := tx.Tasks.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("taskagent: list tasks: %w", err)
	}
	pending, err := tx.Messages.PendingBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("taskagent: list pending messages: %w", err)
	}

	tc := &TaskCtx{
		Tx:           tx,
		ProjectID:    projectID,
		SessionID:    sessionID,
		tasksByOrder: make(map[int]*types.Task, len(tasks)),
		tasksByID:    make(map[string]*types.Task, len(tasks)),
	}
	for _, t := range tasks {
		tc.tasksByOrder[t.Order] = t
		tc.tasksByID[t.ID] = t
		tc.orders = append(tc.orders, t.Order)
	}
	for _, m := range pending {
		tc.PendingMessageIDs = append(tc.PendingMessageIDs, m.ID)
	}
	return tc, nil
}

// TaskByOrder looks up a task by its 1-based dense order.
func (tc *TaskCtx) TaskByOrder(order int) (*types.Task, bool) {
	t, ok := tc.tasksByOrder[order]
	return t, ok
}

// Orders returns the session's current task orders, ascending.
func (tc *TaskCtx) Orders() []int { return append([]int(nil), tc.orders...) }

// NonTerminalExists reports whether any task in tc is pending/in_progress.
// TaskRepo.Insert checks the same invariant at write time; TaskRepo.InsertAfter
// does not, so the insert_task handler checks it here before calling it.
func (tc *TaskCtx) NonTerminalExists() bool {
	for _, t := range tc.tasksByOrder {
		if !t.Status.IsTerminal() {
			return true
		}
	}
	return false
}
