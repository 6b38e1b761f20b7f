// Package storage is the Persistence Gateway: a Postgres-backed relational
// store for every entity in pkg/types, fronted by a unit-of-work
// abstraction so the Task Agent can rebuild its TaskCtx mid-iteration while
// staying inside the same open transaction (see WithTx and TaskCtx's
// rebuild rule in internal/taskagent).
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run unmodified whether called standalone or inside a unit of
// work.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Gateway is the Persistence Gateway: a pooled connection plus every
// entity repository, constructed once and shared across consumers.
type Gateway struct {
	db *sql.DB

	Projects       *ProjectRepo
	Sessions       *SessionRepo
	Messages       *MessageRepo
	Tasks          *TaskRepo
	Disks          *DiskRepo
	Skills         *SkillRepo
	LearningSpaces *LearningSpaceRepo
	SandboxLogs    *SandboxLogRepo
}

// Open connects to dsn and builds a Gateway aggregating every repository,
// mirroring the teacher pack's aggregate-constructor pattern for per-entity
// stores.
func Open(dsn string) (*Gateway, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	return New(db), nil
}

// New builds a Gateway over an already-open *sql.DB (used by tests against
// a test container/sqlmock).
func New(db *sql.DB) *Gateway {
	return &Gateway{
		db:             db,
		Projects:       &ProjectRepo{q: db},
		Sessions:       &SessionRepo{q: db},
		Messages:       &MessageRepo{q: db},
		Tasks:          &TaskRepo{q: db},
		Disks:          &DiskRepo{q: db},
		Skills:         &SkillRepo{q: db},
		LearningSpaces: &LearningSpaceRepo{q: db},
		SandboxLogs:    &SandboxLogRepo{q: db},
	}
}

// Close releases the pooled connection.
func (g *Gateway) Close() error { return g.db.Close() }

// Ping verifies connectivity at startup.
func (g *Gateway) Ping(ctx context.Context) error { return g.db.PingContext(ctx) }

// Tx is a Gateway bound to one open *sql.Tx: every repository it exposes
// runs inside that transaction. The Task Agent's per-iteration atomicity
// (spec.md §4.3) depends on getting the identical Tx back across repeated
// TaskCtx rebuilds within one WithTx call.
type Tx struct {
	tx *sql.Tx

	Projects       *ProjectRepo
	Sessions       *SessionRepo
	Messages       *MessageRepo
	Tasks          *TaskRepo
	Disks          *DiskRepo
	Skills         *SkillRepo
	LearningSpaces *LearningSpaceRepo
	SandboxLogs    *SandboxLogRepo
}

func newTx(tx *sql.Tx) *Tx {
	return &Tx{
		tx:             tx,
		Projects:       &ProjectRepo{q: tx},
		Sessions:       &SessionRepo{q: tx},
		Messages:       &MessageRepo{q: tx},
		Tasks:          &TaskRepo{q: tx},
		Disks:          &DiskRepo{q: tx},
		Skills:         &SkillRepo{q: tx},
		LearningSpaces: &LearningSpaceRepo{q: tx},
		SandboxLogs:    &SandboxLogRepo{q: tx},
	}
}

// Raw exposes the underlying *sql.Tx for callers that need to pass the
// identical transaction handle across a rebuild boundary without tunneling
// it through every repository method (e.g. internal/taskagent's TaskCtx).
func (t *Tx) Raw() *sql.Tx { return t.tx }

// WithTx runs fn inside a single transaction: fn's return value determines
// commit (nil) or rollback (non-nil). fn may call itself repeatedly through
// t (e.g. to rebuild a context) — every call shares the one *sql.Tx, never
// opening a second transaction, which is exactly the invariant
// test_task_agent_atomicity.py's TestContextRebuildWithinTransaction checks
// for in the original implementation.
func (g *Gateway) WithTx(ctx context.Context, fn func(ctx context.Context, t *Tx) error) (err error) {
	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	err = fn(ctx, newTx(sqlTx))
	return err
}
