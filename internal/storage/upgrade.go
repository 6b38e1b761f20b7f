package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// DataHookFunc is a runtime-idempotent post-migration patch: given an open
// *sql.DB, it mutates rows that SQL migrations alone can't express safely
// (backfilling a computed column, re-deriving a default). It must be safe
// to run more than once — RunPendingHooks tracks which hooks already ran,
// but a hook should also tolerate being invoked again by a racing deploy.
type DataHookFunc func(ctx context.Context, db *sql.DB) error

type registeredHook struct {
	name string
	fn   DataHookFunc
}

var registeredHooks []registeredHook

// RegisterDataHook adds a named data hook to the global registry, called
// from each hook's own init() the way the teacher pack's upgrade package
// does.
func RegisterDataHook(name string, fn DataHookFunc) {
	registeredHooks = append(registeredHooks, registeredHook{name: name, fn: fn})
}

// ensureHookTrackingTable creates the idempotency-tracking table if absent.
func ensureHookTrackingTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS applied_data_hooks (
			name TEXT PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)
	`)
	return err
}

// RunPendingHooks runs every registered hook not yet recorded in
// applied_data_hooks, recording each as it succeeds. It returns the number
// of hooks actually applied. Safe to call after every `migrate up`: a
// second run with nothing pending is a no-op.
func RunPendingHooks(ctx context.Context, db *sql.DB) (int, error) {
	if err := ensureHookTrackingTable(ctx, db); err != nil {
		return 0, fmt.Errorf("upgrade: ensure tracking table: %w", err)
	}

	applied := 0
	for _, hook := range registeredHooks {
		var exists bool
		row := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM applied_data_hooks WHERE name = $1)`, hook.name)
		if err := row.Scan(&exists); err != nil {
			return applied, fmt.Errorf("upgrade: check hook %s: %w", hook.name, err)
		}
		if exists {
			continue
		}

		if err := hook.fn(ctx, db); err != nil {
			return applied, fmt.Errorf("upgrade: hook %s: %w", hook.name, err)
		}

		if _, err := db.ExecContext(ctx, `
			INSERT INTO applied_data_hooks (name, applied_at) VALUES ($1, EXTRACT(EPOCH FROM now())::bigint)
			ON CONFLICT (name) DO NOTHING
		`, hook.name); err != nil {
			return applied, fmt.Errorf("upgrade: record hook %s: %w", hook.name, err)
		}
		applied++
	}
	return applied, nil
}

func init() {
	// Adds sessions.display_title for deployments whose schema predates the
	// column, then backfills any NULL left by rows inserted before the
	// column existed (or before a session's first task-derived title was
	// set), keeping GET /sessions/{id} responses non-null. Both statements
	// are idempotent: ADD COLUMN IF NOT EXISTS and WHERE ... IS NULL are
	// no-ops once already applied.
	RegisterDataHook("sessions_display_title_backfill", func(ctx context.Context, db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `
			ALTER TABLE sessions ADD COLUMN IF NOT EXISTS display_title TEXT
		`); err != nil {
			return fmt.Errorf("add display_title column: %w", err)
		}
		_, err := db.ExecContext(ctx, `
			UPDATE sessions SET display_title = '' WHERE display_title IS NULL
		`)
		return err
	})
}
