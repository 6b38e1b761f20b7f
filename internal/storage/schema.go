package storage

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// SchemaStatus reports the applied migration version and whether the
// schema was left dirty by a failed migration.
type SchemaStatus struct {
	Version uint
	Dirty   bool
}

// CheckSchema inspects the schema version at dsn against the migrations in
// migrationsDir without applying anything. `serve` calls this at startup
// and refuses to run against a dirty or unversioned schema — the check is
// purely informative, it never auto-migrates.
func CheckSchema(migrationsDir, dsn string) (*SchemaStatus, error) {
	m, err := migrate.New("file://"+migrationsDir, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open migrator: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return nil, fmt.Errorf("storage: read schema version: %w", err)
	}
	return &SchemaStatus{Version: version, Dirty: dirty}, nil
}

// FormatError renders a SchemaStatus problem as an operator-facing message.
func (s *SchemaStatus) FormatError() string {
	if s.Dirty {
		return fmt.Sprintf("schema at version %d is dirty; run `acontext-server migrate force <version>` after resolving the failed migration", s.Version)
	}
	return fmt.Sprintf("schema at version %d", s.Version)
}
