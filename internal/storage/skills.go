package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/pkg/types"
)

// SkillRepo persists types.AgentSkill index rows. SKILL.md front matter on
// the backing disk remains authoritative for Name/Description; this repo
// is re-synced from it whenever a skill file changes (internal/skilllearn).
type SkillRepo struct{ q Querier }

// Create inserts a new skill. name must already be sanitized
// (types.SanitizeSkillName).
func (r *SkillRepo) Create(ctx context.Context, projectID, diskID, name, description string, filePaths []string) (*types.AgentSkill, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO agent_skills (id, project_id, disk_id, name, description, file_paths, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, projectID, diskID, name, description, idArray(filePaths), now)
	if err != nil {
		return nil, fmt.Errorf("insert skill: %w", err)
	}

	return &types.AgentSkill{
		ID: id, ProjectID: projectID, DiskID: diskID, Name: name,
		Description: description, FilePaths: filePaths, Created: now, Updated: now,
	}, nil
}

// GetByName fetches a skill by project+name.
func (r *SkillRepo) GetByName(ctx context.Context, projectID, name string) (*types.AgentSkill, error) {
	return r.scanRow(r.q.QueryRowContext(ctx, `
		SELECT id, project_id, disk_id, name, description, file_paths, created, updated
		FROM agent_skills WHERE project_id = $1 AND name = $2
	`, projectID, name))
}

// ListByProject returns every skill in a project, ordered by name. The
// Skill-Learn Agent's "Available Skills" section is seeded from the
// learning space's linked skills instead; nothing calls this.
func (r *SkillRepo) ListByProject(ctx context.Context, projectID string) ([]*types.AgentSkill, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, project_id, disk_id, name, description, file_paths, created, updated
		FROM agent_skills WHERE project_id = $1 ORDER BY name ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var out []*types.AgentSkill
	for rows.Next() {
		var s types.AgentSkill
		var filePaths []string
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.DiskID, &s.Name, &s.Description, arrayScanner(&filePaths), &s.Created, &s.Updated); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		s.FilePaths = filePaths
		out = append(out, &s)
	}
	return out, rows.Err()
}

// UpdateDescriptionAndFiles re-syncs a skill row from its SKILL.md front
// matter and current file list after a create_skill_file/
// str_replace_skill_file/delete_skill_file mutation.
func (r *SkillRepo) UpdateDescriptionAndFiles(ctx context.Context, skillID, description string, filePaths []string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE agent_skills SET description = $2, file_paths = $3, updated = $4 WHERE id = $1
	`, skillID, description, idArray(filePaths), time.Now().UnixMilli())
	return err
}

func (r *SkillRepo) scanRow(row queryRowScanner) (*types.AgentSkill, error) {
	var s types.AgentSkill
	var filePaths []string
	if err := row.Scan(&s.ID, &s.ProjectID, &s.DiskID, &s.Name, &s.Description, arrayScanner(&filePaths), &s.Created, &s.Updated); err != nil {
		return nil, fmt.Errorf("get skill: %w", err)
	}
	s.FilePaths = filePaths
	return &s, nil
}
