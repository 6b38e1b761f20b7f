package taskagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/acontext-run/runtime/internal/apierr"
	"github.com/acontext-run/runtime/internal/event"
	"github.com/acontext-run/runtime/pkg/types"
)

// toolOutcome is what dispatchTool reports back to the iteration loop:
// whether the TaskCtx must be rebuilt before the next tool call, whether a
// task crossed into a terminal status (feeding the post-commit learning
// drain), and whether finish/report_thinking fired.
type toolOutcome struct {
	ResultText     string
	Rebuild        bool
	TerminalTaskID string
	Finished       bool
	Thought        bool
}

// dispatchTool executes one tool call against tc, returning a
// ClassBusinessRejection error when the call is semantically invalid
// (unknown task order, already-terminal update, status regression) —
// callers must roll back the whole iteration on rejection, never partial
// writes (spec.md §4.3 step 4).
func dispatchTool(ctx context.Context, tc *TaskCtx, name string, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	switch name {
	case ToolInsertTask:
		return dispatchInsertTask(ctx, tc, argsJSON)
	case ToolAppendMessagesToTask:
		return dispatchAppendMessages(ctx, tc, argsJSON)
	case ToolAppendTaskProgress:
		return dispatchAppendProgress(ctx, tc, argsJSON)
	case ToolSubmitUserPreference:
		return dispatchSubmitPreference(ctx, tc, argsJSON)
	case ToolUpdateTask:
		return dispatchUpdateTask(ctx, tc, argsJSON)
	case ToolFinish:
		return &toolOutcome{ResultText: "ok", Finished: true}, nil
	case ToolReportThinking:
		return dispatchReportThinking(argsJSON)
	default:
		return nil, apierr.Validation(fmt.Sprintf("taskagent: unknown tool %q", name))
	}
}

func unmarshalArgs[T any](argsJSON json.RawMessage) (T, *apierr.Error) {
	var v T
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		var zero T
		return zero, apierr.Validation(fmt.Sprintf("taskagent: malformed tool arguments: %v", err))
	}
	return v, nil
}

func dispatchInsertTask(ctx context.Context, tc *TaskCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[InsertTaskArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	if args.AfterTaskOrder > 0 {
		if _, ok := tc.TaskByOrder(args.AfterTaskOrder); !ok {
			return nil, apierr.Rejection(fmt.Sprintf("no task at order %d to insert after", args.AfterTaskOrder))
		}
	}
	if tc.NonTerminalExists() {
		return nil, apierr.Rejection("a non-terminal task already exists in this session")
	}

	task, aerr := tc.Tx.Tasks.InsertAfter(ctx, tc.SessionID, args.AfterTaskOrder, args.TaskDescription)
	if aerr != nil {
		return nil, aerr
	}
	event.Publish(event.Event{Type: event.TaskCreated, Data: event.TaskCreatedData{Task: task}})
	return &toolOutcome{ResultText: fmt.Sprintf("inserted task at order %d", task.Order), Rebuild: true}, nil
}

func dispatchAppendMessages(ctx context.Context, tc *TaskCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[AppendMessagesArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	task, ok := tc.TaskByOrder(args.TaskOrder)
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no task at order %d", args.TaskOrder))
	}
	if len(args.MessageIDs) == 0 {
		return nil, apierr.Rejection("append_messages_to_task requires at least one message id")
	}

	pendingSet := make(map[string]bool, len(tc.PendingMessageIDs))
	for _, id := range tc.PendingMessageIDs {
		pendingSet[id] = true
	}
	for _, id := range args.MessageIDs {
		if !pendingSet[id] {
			return nil, apierr.Rejection(fmt.Sprintf("message %s is not a pending message for this session", id))
		}
	}

	if err := tc.Tx.Tasks.AppendMessages(ctx, task.ID, args.MessageIDs); err != nil {
		return nil, apierr.Fatal("append messages to task", err)
	}
	if err := tc.Tx.Messages.MarkProcessed(ctx, args.MessageIDs); err != nil {
		return nil, apierr.Fatal("mark messages processed", err)
	}
	return &toolOutcome{ResultText: fmt.Sprintf("bound %d message(s) to task %d", len(args.MessageIDs), args.TaskOrder), Rebuild: true}, nil
}

func dispatchAppendProgress(ctx context.Context, tc *TaskCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[AppendTaskProgressArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	task, ok := tc.TaskByOrder(args.TaskOrder)
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no task at order %d", args.TaskOrder))
	}
	if err := tc.Tx.Tasks.AppendProgress(ctx, task.ID, args.ProgressText); err != nil {
		return nil, apierr.Fatal("append task progress", err)
	}
	return &toolOutcome{ResultText: "progress recorded", Rebuild: true}, nil
}

func dispatchSubmitPreference(ctx context.Context, tc *TaskCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[SubmitUserPreferenceArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	task, ok := tc.TaskByOrder(args.TaskOrder)
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no task at order %d", args.TaskOrder))
	}
	if err := tc.Tx.Tasks.SetUserPreference(ctx, task.ID, args.PreferenceText); err != nil {
		return nil, apierr.Fatal("submit user preference", err)
	}
	return &toolOutcome{ResultText: "preference recorded", Rebuild: true}, nil
}

func parseTaskStatus(s string) (types.TaskStatus, bool) {
	switch s {
	case "pending":
		return types.TaskPending, true
	case "running":
		return types.TaskInProgress, true
	case "success":
		return types.TaskSuccess, true
	case "failed":
		return types.TaskFailed, true
	default:
		return "", false
	}
}

func dispatchUpdateTask(ctx context.Context, tc *TaskCtx, argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[UpdateTaskArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	task, ok := tc.TaskByOrder(args.TaskOrder)
	if !ok {
		return nil, apierr.Rejection(fmt.Sprintf("no task at order %d", args.TaskOrder))
	}
	next, ok := parseTaskStatus(args.Status)
	if !ok {
		return nil, apierr.Validation(fmt.Sprintf("unknown task status %q", args.Status))
	}
	if task.Status.IsTerminal() {
		return nil, apierr.Rejection(fmt.Sprintf("task %d is already terminal (%s)", args.TaskOrder, task.Status))
	}
	if next == types.TaskPending && task.Status == types.TaskInProgress {
		return nil, apierr.Rejection("cannot move a running task back to pending")
	}

	if args.TaskDescription != "" {
		if err := tc.Tx.Tasks.UpdateDescription(ctx, task.ID, args.TaskDescription); err != nil {
			return nil, apierr.Fatal("update task description", err)
		}
	}

	previous, err := tc.Tx.Tasks.UpdateStatus(ctx, task.ID, next)
	if err != nil {
		return nil, apierr.Fatal("update task status", err)
	}

	updated := *task
	updated.Status = next
	event.Publish(event.Event{Type: event.TaskUpdated, Data: event.TaskUpdatedData{Task: &updated}})

	out := &toolOutcome{ResultText: fmt.Sprintf("task %d status %s -> %s", args.TaskOrder, previous, next), Rebuild: true}
	if next.IsTerminal() {
		event.Publish(event.Event{Type: event.TaskStatusTransitioned, Data: event.TaskStatusTransitionData{Task: &updated, Previous: previous}})
		out.TerminalTaskID = task.ID
	}
	return out, nil
}

func dispatchReportThinking(argsJSON json.RawMessage) (*toolOutcome, *apierr.Error) {
	args, verr := unmarshalArgs[ReportThinkingArgs](argsJSON)
	if verr != nil {
		return nil, verr
	}
	return &toolOutcome{ResultText: "ack", Thought: args.Text != ""}, nil
}
