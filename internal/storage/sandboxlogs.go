package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/pkg/types"
)

// SandboxLogRepo persists types.SandboxLog rows: the only part of a sandbox
// invocation the gateway owns (the sandbox VM itself is an external
// collaborator, see internal/sandbox).
type SandboxLogRepo struct{ q Querier }

// Create starts a new sandbox log for projectID.
func (r *SandboxLogRepo) Create(ctx context.Context, projectID string) (*types.SandboxLog, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sandbox_logs (id, project_id, history_commands, generated_files, created, updated)
		VALUES ($1, $2, '{}', '{}', $3, $3)
	`, id, projectID, now)
	if err != nil {
		return nil, fmt.Errorf("insert sandbox log: %w", err)
	}
	return &types.SandboxLog{ID: id, ProjectID: projectID, Created: now, Updated: now}, nil
}

// AppendCommand records one executed command.
func (r *SandboxLogRepo) AppendCommand(ctx context.Context, id, command string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE sandbox_logs SET history_commands = array_append(history_commands, $2), updated = $3
		WHERE id = $1
	`, id, command, time.Now().UnixMilli())
	return err
}

// AppendGeneratedFile records one generated file path.
func (r *SandboxLogRepo) AppendGeneratedFile(ctx context.Context, id, path string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE sandbox_logs SET generated_files = array_append(generated_files, $2), updated = $3
		WHERE id = $1
	`, id, path, time.Now().UnixMilli())
	return err
}

// Get fetches a sandbox log by ID.
func (r *SandboxLogRepo) Get(ctx context.Context, id string) (*types.SandboxLog, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, project_id, history_commands, generated_files, created, updated
		FROM sandbox_logs WHERE id = $1
	`, id)

	var s types.SandboxLog
	if err := row.Scan(&s.ID, &s.ProjectID, arrayScanner(&s.HistoryCommands), arrayScanner(&s.GeneratedFiles), &s.Created, &s.Updated); err != nil {
		return nil, fmt.Errorf("get sandbox log: %w", err)
	}
	return &s, nil
}
