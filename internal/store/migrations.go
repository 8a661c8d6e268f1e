package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is a forward-only, tracked-by-version schema step: each entry
// is applied at most once, recorded in schema_migrations inside the same
// transaction as its DDL.
type migration struct {
	Version int
	UpSQL   string
}

var migrations = []migration{
	{
		Version: 1,
		UpSQL: `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS timer_schedules (
	tenant_id TEXT NOT NULL,
	service_call_id TEXT NOT NULL,
	correlation_id TEXT,
	due_at TEXT NOT NULL,
	registered_at TEXT NOT NULL,
	reached_at TEXT,
	state TEXT NOT NULL CHECK(state IN ('Scheduled','Reached')),
	PRIMARY KEY(tenant_id, service_call_id)
);

CREATE INDEX IF NOT EXISTS timer_schedules_due_idx
ON timer_schedules(state, due_at, tenant_id);
`,
	},
}

// applyMigrations runs every pending migration: idempotent, version-tracked,
// one transaction per migration.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
