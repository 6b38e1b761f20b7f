package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/pkg/types"
)

// MessageRepo persists types.Message rows, ordered by (created, id) so
// same-millisecond messages still tiebreak deterministically on the
// monotonic bits of their UUIDv7 ID.
type MessageRepo struct{ q Querier }

// Insert stores a new message with session_task_process_status=pending.
func (r *MessageRepo) Insert(ctx context.Context, sessionID, role string, parts []types.Part, modelParams *types.ModelParams) (*types.Message, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	partsJSON, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("marshal parts: %w", err)
	}
	var paramsJSON []byte
	if modelParams != nil {
		if paramsJSON, err = json.Marshal(modelParams); err != nil {
			return nil, fmt.Errorf("marshal model params: %w", err)
		}
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, parts, model_params, session_task_process_status, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, sessionID, role, partsJSON, nullableJSON(paramsJSON), types.TaskProcessPending, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return &types.Message{
		ID:                       id,
		SessionID:                sessionID,
		Role:                     role,
		Parts:                    parts,
		ModelParams:              modelParams,
		SessionTaskProcessStatus: types.TaskProcessPending,
		Created:                  now,
	}, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// ListBySession returns a session's messages ordered oldest-first.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]*types.Message, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, role, parts, model_params, session_task_process_status, created
		FROM messages WHERE session_id = $1
		ORDER BY created ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// LatestPendingID returns the ID of the most recently created message with
// session_task_process_status=pending, or "" if none exist. This backs the
// Buffer Controller's staleness-dedup check: a stale timer/consumer
// invocation compares its snapshot ID against this live value.
func (r *MessageRepo) LatestPendingID(ctx context.Context, sessionID string) (string, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id FROM messages
		WHERE session_id = $1 AND session_task_process_status = $2
		ORDER BY created DESC, id DESC
		LIMIT 1
	`, sessionID, types.TaskProcessPending)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest pending id: %w", err)
	}
	return id, nil
}

// PendingBySession returns every pending message for sessionID, oldest
// first — the Buffer Controller's working set.
func (r *MessageRepo) PendingBySession(ctx context.Context, sessionID string) ([]*types.Message, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, session_id, role, parts, model_params, session_task_process_status, created
		FROM messages
		WHERE session_id = $1 AND session_task_process_status = $2
		ORDER BY created ASC, id ASC
	`, sessionID, types.TaskProcessPending)
	if err != nil {
		return nil, fmt.Errorf("pending messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkProcessed transitions a set of message IDs to
// session_task_process_status=success, called by the Task Agent when it
// buckets them into a task within the same transaction as the task
// mutation.
func (r *MessageRepo) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.ExecContext(ctx, `
		UPDATE messages SET session_task_process_status = $1
		WHERE id = ANY($2)
	`, types.TaskProcessSuccess, idArray(ids))
	return err
}

// MarkFailed transitions a set of message IDs to
// session_task_process_status=failed, called when a task-agent iteration
// fails fatally and rolls back (the triggering messages stay unbucketed).
func (r *MessageRepo) MarkFailed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.ExecContext(ctx, `
		UPDATE messages SET session_task_process_status = $1
		WHERE id = ANY($2)
	`, types.TaskProcessFailed, idArray(ids))
	return err
}

func scanMessages(rows *sql.Rows) ([]*types.Message, error) {
	var out []*types.Message
	for rows.Next() {
		var m types.Message
		var partsJSON []byte
		var paramsJSON []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &partsJSON, &paramsJSON, &m.SessionTaskProcessStatus, &m.Created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal(partsJSON, &m.Parts); err != nil {
			return nil, fmt.Errorf("unmarshal parts: %w", err)
		}
		if len(paramsJSON) > 0 {
			m.ModelParams = &types.ModelParams{}
			if err := json.Unmarshal(paramsJSON, m.ModelParams); err != nil {
				return nil, fmt.Errorf("unmarshal model params: %w", err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
