package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acontext-run/runtime/pkg/types"
)

// DiskRepo persists types.Disk and types.Artifact rows. Each artifact row
// carries its path, SHA-256 content hash and size, and, when PutArtifact is
// given non-empty content, that content inline in the row.
type DiskRepo struct{ q Querier }

// Create provisions a new disk under projectID.
func (r *DiskRepo) Create(ctx context.Context, projectID, name string) (*types.Disk, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UnixMilli()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO disks (id, project_id, name, created) VALUES ($1, $2, $3, $4)
	`, id, projectID, name, now)
	if err != nil {
		return nil, fmt.Errorf("insert disk: %w", err)
	}
	return &types.Disk{ID: id, ProjectID: projectID, Name: name, Created: now}, nil
}

// GetOrCreateByName returns the project's disk named name, creating it if
// absent. Used by the HTTP layer to provision a per-project upload disk on
// first file-bearing message without requiring a prior explicit disk-create
// call (disks outside the skill-library path have no admin surface in
// scope — spec.md §1 Non-goals excludes disk/artifact CRUD endpoints).
func (r *DiskRepo) GetOrCreateByName(ctx context.Context, projectID, name string) (*types.Disk, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, project_id, name, created FROM disks WHERE project_id = $1 AND name = $2
	`, projectID, name)
	var d types.Disk
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &d.Created); err == nil {
		return &d, nil
	}
	return r.Create(ctx, projectID, name)
}

// PutArtifact upserts an artifact at path, keyed by contentHash. content is
// empty for externally-addressed (non-inline) artifacts.
func (r *DiskRepo) PutArtifact(ctx context.Context, diskID, path, contentHash, content string, size int64) (*types.Artifact, error) {
	now := time.Now().UnixMilli()

	row := r.q.QueryRowContext(ctx, `SELECT id FROM artifacts WHERE disk_id = $1 AND path = $2`, diskID, path)
	var existingID string
	if err := row.Scan(&existingID); err == nil {
		_, err := r.q.ExecContext(ctx, `
			UPDATE artifacts SET content_hash = $2, content = $3, size = $4, updated = $5 WHERE id = $1
		`, existingID, contentHash, nullableText(content), size, now)
		if err != nil {
			return nil, fmt.Errorf("update artifact: %w", err)
		}
		return &types.Artifact{ID: existingID, DiskID: diskID, Path: path, ContentHash: contentHash, Content: content, Size: size, Updated: now}, nil
	}

	id := uuid.Must(uuid.NewV7()).String()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO artifacts (id, disk_id, path, content_hash, content, size, created, updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, diskID, path, contentHash, nullableText(content), size, now)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return &types.Artifact{ID: id, DiskID: diskID, Path: path, ContentHash: contentHash, Content: content, Size: size, Created: now, Updated: now}, nil
}

// PutTextArtifact upserts an inline text artifact, computing its content
// hash and byte size from text itself — the shape every skill-file mutation
// in internal/skilllearn writes through.
func (r *DiskRepo) PutTextArtifact(ctx context.Context, diskID, path, text string) (*types.Artifact, error) {
	sum := sha256.Sum256([]byte(text))
	return r.PutArtifact(ctx, diskID, path, hex.EncodeToString(sum[:]), text, int64(len(text)))
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetArtifact fetches an artifact by disk+path.
func (r *DiskRepo) GetArtifact(ctx context.Context, diskID, path string) (*types.Artifact, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, disk_id, path, content_hash, content, size, created, updated
		FROM artifacts WHERE disk_id = $1 AND path = $2
	`, diskID, path)
	return scanArtifact(row)
}

func scanArtifact(row queryRowScanner) (*types.Artifact, error) {
	var a types.Artifact
	var content *string
	if err := row.Scan(&a.ID, &a.DiskID, &a.Path, &a.ContentHash, &content, &a.Size, &a.Created, &a.Updated); err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	if content != nil {
		a.Content = *content
	}
	return &a, nil
}

// DeleteArtifact removes an artifact row by disk+path. The underlying blob
// in the object store is left untouched (garbage collection is out of
// scope, same as the object store itself).
func (r *DiskRepo) DeleteArtifact(ctx context.Context, diskID, path string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM artifacts WHERE disk_id = $1 AND path = $2`, diskID, path)
	return err
}

// ListArtifacts returns every artifact on a disk, ordered by path. No
// pattern filtering is applied; nothing in this repository calls it.
func (r *DiskRepo) ListArtifacts(ctx context.Context, diskID string) ([]*types.Artifact, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, disk_id, path, content_hash, content, size, created, updated
		FROM artifacts WHERE disk_id = $1 ORDER BY path ASC
	`, diskID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*types.Artifact
	for rows.Next() {
		var a types.Artifact
		var content *string
		if err := rows.Scan(&a.ID, &a.DiskID, &a.Path, &a.ContentHash, &content, &a.Size, &a.Created, &a.Updated); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if content != nil {
			a.Content = *content
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
