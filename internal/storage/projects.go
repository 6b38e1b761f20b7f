package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/pkg/types"
)

// ProjectRepo persists types.Project rows.
type ProjectRepo struct{ q Querier }

// Create inserts a new project, generating a time-ordered ID.
func (r *ProjectRepo) Create(ctx context.Context, name string, secretDigest string, cfg types.ProjectConfig) (*types.Project, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal project config: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO projects (id, name, secret_digest, config, created, updated)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, id, name, secretDigest, cfgJSON, now)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	return &types.Project{
		ID:           id,
		Name:         name,
		SecretDigest: secretDigest,
		Config:       cfg,
		Time:         types.ProjectTime{Created: now, Updated: now},
	}, nil
}

// Get fetches a project by ID.
func (r *ProjectRepo) Get(ctx context.Context, id string) (*types.Project, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, name, secret_digest, config, created, updated
		FROM projects WHERE id = $1
	`, id)

	var p types.Project
	var cfgJSON []byte
	if err := row.Scan(&p.ID, &p.Name, &p.SecretDigest, &cfgJSON, &p.Time.Created, &p.Time.Updated); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if err := json.Unmarshal(cfgJSON, &p.Config); err != nil {
		return nil, fmt.Errorf("unmarshal project config: %w", err)
	}
	return &p, nil
}

// UpdateConfig overwrites a project's ProjectConfig.
func (r *ProjectRepo) UpdateConfig(ctx context.Context, id string, cfg types.ProjectConfig) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		UPDATE projects SET config = $2, updated = $3 WHERE id = $1
	`, id, cfgJSON, time.Now().UnixMilli())
	return err
}
