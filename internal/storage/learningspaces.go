package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/pkg/types"
)

// LearningSpaceRepo persists types.LearningSpace rows.
type LearningSpaceRepo struct{ q Querier }

// Create provisions a new learning space backed by a dedicated disk.
func (r *LearningSpaceRepo) Create(ctx context.Context, projectID, diskID, name string) (*types.LearningSpace, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO learning_spaces (id, project_id, disk_id, name, created)
		VALUES ($1, $2, $3, $4, $5)
	`, id, projectID, diskID, name, now)
	if err != nil {
		return nil, fmt.Errorf("insert learning space: %w", err)
	}
	return &types.LearningSpace{ID: id, ProjectID: projectID, DiskID: diskID, Name: name, Created: now}, nil
}

// Get fetches a learning space by ID.
func (r *LearningSpaceRepo) Get(ctx context.Context, id string) (*types.LearningSpace, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, project_id, disk_id, name, created FROM learning_spaces WHERE id = $1
	`, id)

	var ls types.LearningSpace
	if err := row.Scan(&ls.ID, &ls.ProjectID, &ls.DiskID, &ls.Name, &ls.Created); err != nil {
		return nil, fmt.Errorf("get learning space: %w", err)
	}
	return &ls, nil
}

// LinkSkill records that a skill was produced for/attached to a learning
// space, idempotently (ON CONFLICT DO NOTHING) since create_skill may be
// followed by an explicit re-link with no observable effect.
func (r *LearningSpaceRepo) LinkSkill(ctx context.Context, learningSpaceID, skillID string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO learning_space_skills (learning_space_id, skill_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, learningSpaceID, skillID)
	return err
}

// Skills returns every skill linked to a learning space, ordered by name,
// used to seed the Skill-Learn Agent's "Available Skills" prompt section.
func (r *LearningSpaceRepo) Skills(ctx context.Context, learningSpaceID string) ([]*types.AgentSkill, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT s.id, s.project_id, s.disk_id, s.name, s.description, s.file_paths, s.created, s.updated
		FROM agent_skills s
		JOIN learning_space_skills ls ON ls.skill_id = s.id
		WHERE ls.learning_space_id = $1
		ORDER BY s.name ASC
	`, learningSpaceID)
	if err != nil {
		return nil, fmt.Errorf("list learning space skills: %w", err)
	}
	defer rows.Close()

	var out []*types.AgentSkill
	for rows.Next() {
		var s types.AgentSkill
		var filePaths []string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.DiskID, &s.Name, &s.Description, arrayScanner(&filePaths), &s.Created, &s.Updated); err != nil {
			return nil, fmt.Errorf("scan learning space skill: %w", err)
		}
		s.FilePaths = filePaths
		out = append(out, &s)
	}
	return out, rows.Err()
}
