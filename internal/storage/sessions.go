package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/pkg/types"
)

// SessionRepo persists types.Session rows and the session<->learning-space
// junction table.
type SessionRepo struct{ q Querier }

// Create inserts a new session under projectID. disableTaskTracking wires
// spec.md §3's per-session opt-out: when true, the Buffer Controller and
// Session-Message Consumer never run for this session's messages.
func (r *SessionRepo) Create(ctx context.Context, projectID string, disableTaskTracking bool) (*types.Session, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, display_title, disable_task_tracking, created, updated)
		VALUES ($1, $2, '', $3, $4, $4)
	`, id, projectID, disableTaskTracking, now)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &types.Session{
		ID:                  id,
		ProjectID:           projectID,
		DisableTaskTracking: disableTaskTracking,
		Time:                types.SessionTime{Created: now, Updated: now},
	}, nil
}

// Get fetches a session by ID.
func (r *SessionRepo) Get(ctx context.Context, id string) (*types.Session, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, project_id, display_title, disable_task_tracking, created, updated
		FROM sessions WHERE id = $1
	`, id)

	var s types.Session
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Title, &s.DisableTaskTracking, &s.Time.Created, &s.Time.Updated); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// SetDisplayTitle overwrites a session's display_title, used by the HTTP
// session-create handler when the request carries a title.
func (r *SessionRepo) SetDisplayTitle(ctx context.Context, id, title string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET display_title = $2, updated = $3 WHERE id = $1
	`, id, title, time.Now().UnixMilli())
	return err
}

// LinkLearningSpace inserts a session<->learning-space junction row,
// idempotently (ON CONFLICT DO NOTHING) since relinking the same pair is a
// no-op rather than an error.
func (r *SessionRepo) LinkLearningSpace(ctx context.Context, sessionID, learningSpaceID string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO session_learning_spaces (session_id, learning_space_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, sessionID, learningSpaceID)
	return err
}

// LearningSpaceID returns the learning space linked to sessionID, or ""
// with no error if the session is not linked to one.
func (r *SessionRepo) LearningSpaceID(ctx context.Context, sessionID string) (string, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT learning_space_id FROM session_learning_spaces WHERE session_id = $1
	`, sessionID)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("lookup learning space: %w", err)
	}
	return id, nil
}
