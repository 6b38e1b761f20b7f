package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/acontext-run/runtime/pkg/types"
	"github.com/acontext-run/runtime/internal/apierr"
)

// TaskRepo persists types.Task rows. Insert and InsertAfter keep task Order
// dense per session; only Insert also checks that at most one non-terminal
// (pending/in_progress) task exists per session, and InsertAfter leaves
// that check to its caller.
type TaskRepo struct{ q Querier }

// NonTerminal returns a session's current pending/in_progress task, or nil
// if none exists.
func (r *TaskRepo) NonTerminal(ctx context.Context, sessionID string) (*types.Task, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, session_id, "order", status, data, raw_message_ids, created, updated
		FROM tasks
		WHERE session_id = $1 AND status IN ($2, $3)
		ORDER BY "order" DESC
		LIMIT 1
	`, sessionID, types.TaskPending, types.TaskInProgress)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// Insert creates a new task at the next dense order for sessionID. It
// rejects the insert with apierr.Rejection if a non-terminal task already
// exists, enforcing the at-most-one-non-terminal-task invariant atomically
// within the caller's transaction.
func (r *TaskRepo) Insert(ctx context.Context, sessionID string, data types.TaskData, rawMessageIDs []string) (*types.Task, *apierr.Error) {
	existing, err := r.NonTerminal(ctx, sessionID)
	if err != nil {
		return nil, apierr.Fatal("check non-terminal task", err)
	}
	if existing != nil {
		return nil, apierr.Rejection(fmt.Sprintf("session %s already has a non-terminal task %s", sessionID, existing.ID))
	}

	var nextOrder int
	row := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX("order"), 0) + 1 FROM tasks WHERE session_id = $1
	`, sessionID)
	if err := row.Scan(&nextOrder); err != nil {
		return nil, apierr.Fatal("compute next task order", err)
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	dataJSON, jsonErr := json.Marshal(data)
	if jsonErr != nil {
		return nil, apierr.Fatal("marshal task data", jsonErr)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO tasks (id, session_id, "order", status, data, raw_message_ids, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, sessionID, nextOrder, types.TaskPending, dataJSON, idArray(rawMessageIDs), now)
	if err != nil {
		return nil, apierr.Fatal("insert task", err)
	}

	return &types.Task{
		ID:            id,
		SessionID:     sessionID,
		Order:         nextOrder,
		Status:        types.TaskPending,
		Data:          data,
		RawMessageIDs: rawMessageIDs,
		Created:       now,
		Updated:       now,
	}, nil
}

// InsertAfter creates a new task immediately after afterOrder, renumbering
// every existing task with order >= afterOrder+1 by +1 in one statement so
// the session's order sequence stays dense. afterOrder=0 inserts at the
// front of the session.
func (r *TaskRepo) InsertAfter(ctx context.Context, sessionID string, afterOrder int, description string) (*types.Task, *apierr.Error) {
	newOrder := afterOrder + 1

	if _, err := r.q.ExecContext(ctx, `
		UPDATE tasks SET "order" = "order" + 1, updated = $3
		WHERE session_id = $1 AND "order" >= $2
	`, sessionID, newOrder, time.Now().UnixMilli()); err != nil {
		return nil, apierr.Fatal("renumber trailing tasks", err)
	}

	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()
	data := types.TaskData{TaskDescription: description}
	dataJSON, jsonErr := json.Marshal(data)
	if jsonErr != nil {
		return nil, apierr.Fatal("marshal task data", jsonErr)
	}

	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO tasks (id, session_id, "order", status, data, raw_message_ids, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, sessionID, newOrder, types.TaskPending, dataJSON, idArray(nil), now); err != nil {
		return nil, apierr.Fatal("insert task after order", err)
	}

	return &types.Task{
		ID: id, SessionID: sessionID, Order: newOrder, Status: types.TaskPending,
		Data: data, Created: now, Updated: now,
	}, nil
}

// ListBySession returns every task in a session ordered by its dense
// Order, the working set internal/taskagent.TaskCtx materializes each
// iteration.
func (r *TaskRepo) ListBySession(ctx context.Context, sessionID string) ([]*types.Task, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, "order", status, data, raw_message_ids, created, updated
		FROM tasks WHERE session_id = $1 ORDER BY "order" ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		var t types.Task
		var dataJSON []byte
		var rawIDs []string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Order, &t.Status, &dataJSON, pq.Array(&rawIDs), &t.Created, &t.Updated); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal(dataJSON, &t.Data); err != nil {
			return nil, fmt.Errorf("unmarshal task data: %w", err)
		}
		t.RawMessageIDs = rawIDs
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Get fetches a task by ID.
func (r *TaskRepo) Get(ctx context.Context, id string) (*types.Task, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, session_id, "order", status, data, raw_message_ids, created, updated
		FROM tasks WHERE id = $1
	`, id)
	return scanTask(row)
}

// AppendMessages extends raw_message_ids with additional message IDs.
func (r *TaskRepo) AppendMessages(ctx context.Context, taskID string, messageIDs []string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE tasks SET raw_message_ids = raw_message_ids || $2, updated = $3
		WHERE id = $1
	`, taskID, idArray(messageIDs), time.Now().UnixMilli())
	return err
}

// AppendProgress appends one TaskProgress note to a task's Data.Progresses.
func (r *TaskRepo) AppendProgress(ctx context.Context, taskID, note string) error {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return err
	}
	task.Data.Progresses = append(task.Data.Progresses, types.TaskProgress{
		Note:    note,
		Created: time.Now().UnixMilli(),
	})
	return r.updateData(ctx, taskID, task.Data)
}

// SetUserPreference appends a captured user preference to the task's
// preference list.
func (r *TaskRepo) SetUserPreference(ctx context.Context, taskID, preference string) error {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return err
	}
	task.Data.UserPreferences = append(task.Data.UserPreferences, preference)
	return r.updateData(ctx, taskID, task.Data)
}

func (r *TaskRepo) updateData(ctx context.Context, taskID string, data types.TaskData) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal task data: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		UPDATE tasks SET data = $2, updated = $3 WHERE id = $1
	`, taskID, dataJSON, time.Now().UnixMilli())
	return err
}

// UpdateStatus transitions a task's status and returns the previous status,
// so the caller (internal/taskagent) can decide whether this transition
// crossed into a terminal state and therefore needs a skill-learn-task
// publish after commit.
func (r *TaskRepo) UpdateStatus(ctx context.Context, taskID string, next types.TaskStatus) (previous types.TaskStatus, err error) {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	previous = task.Status

	_, err = r.q.ExecContext(ctx, `
		UPDATE tasks SET status = $2, updated = $3 WHERE id = $1
	`, taskID, next, time.Now().UnixMilli())
	return previous, err
}

// UpdateDescription overwrites a task's running description.
func (r *TaskRepo) UpdateDescription(ctx context.Context, taskID, description string) error {
	task, err := r.Get(ctx, taskID)
	if err != nil {
		return err
	}
	task.Data.TaskDescription = description
	return r.updateData(ctx, taskID, task.Data)
}

func scanTask(row *sql.Row) (*types.Task, error) {
	var t types.Task
	var dataJSON []byte
	var rawIDs []string
	if err := row.Scan(&t.ID, &t.SessionID, &t.Order, &t.Status, &dataJSON, pq.Array(&rawIDs), &t.Created, &t.Updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dataJSON, &t.Data); err != nil {
		return nil, fmt.Errorf("unmarshal task data: %w", err)
	}
	t.RawMessageIDs = rawIDs
	return &t, nil
}
