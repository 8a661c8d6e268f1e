package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/g960059/timersvc/internal/ids"
	"github.com/g960059/timersvc/internal/timer"
)

const (
	stateScheduled = "Scheduled"
	stateReached   = "Reached"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a single-writer, WAL-mode SQLite file.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Save upserts a Scheduled timer. If the existing row is Reached, the
// WHERE clause on the conflict target prevents any column from changing
// and the call still reports success.
func (s *Store) Save(ctx context.Context, scheduled timer.Scheduled) error {
	if scheduled.TenantID.IsZero() || scheduled.ServiceCallID.IsZero() {
		return &ValidationError{Field: "key", Reason: "tenantId and serviceCallId are required"}
	}

	var correlationID any
	if scheduled.CorrelationID != nil {
		correlationID = scheduled.CorrelationID.String()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO timer_schedules(tenant_id, service_call_id, correlation_id, due_at, registered_at, reached_at, state)
VALUES (?, ?, ?, ?, ?, NULL, ?)
ON CONFLICT(tenant_id, service_call_id) DO UPDATE SET
	correlation_id = excluded.correlation_id,
	due_at = excluded.due_at,
	registered_at = excluded.registered_at
WHERE timer_schedules.state <> 'Reached'
`,
		scheduled.TenantID.String(), scheduled.ServiceCallID.String(), correlationID,
		ts(scheduled.DueAt), ts(scheduled.RegisteredAt), stateScheduled,
	)
	if err != nil {
		return wrapPersistence("save", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, key timer.Key) (timer.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT correlation_id, due_at, registered_at, reached_at, state
FROM timer_schedules WHERE tenant_id = ? AND service_call_id = ?
`, key.TenantID.String(), key.ServiceCallID.String())
	entry, err := scanEntry(row, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapPersistence("find", err)
	}
	return entry, nil
}

// FindScheduled treats a Reached row the same as absent.
func (s *Store) FindScheduled(ctx context.Context, key timer.Key) (timer.Scheduled, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT correlation_id, due_at, registered_at
FROM timer_schedules WHERE tenant_id = ? AND service_call_id = ? AND state = 'Scheduled'
`, key.TenantID.String(), key.ServiceCallID.String())

	var correlationID sql.NullString
	var dueAt, registeredAt string
	err := row.Scan(&correlationID, &dueAt, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return timer.Scheduled{}, ErrNotFound
	}
	if err != nil {
		return timer.Scheduled{}, wrapPersistence("findScheduled", err)
	}

	due, regAt, err := parseTimes(dueAt, registeredAt)
	if err != nil {
		return timer.Scheduled{}, wrapPersistence("findScheduled", err)
	}
	return timer.Scheduled{
		TenantID:      key.TenantID,
		ServiceCallID: key.ServiceCallID,
		DueAt:         due,
		RegisteredAt:  regAt,
		CorrelationID: correlationIDPtr(correlationID),
	}, nil
}

// FindDue returns every Scheduled row due at or before now, ordered
// (dueAt ASC, registeredAt ASC, serviceCallId ASC) — the deterministic,
// total tie-break order the polling worker relies on.
func (s *Store) FindDue(ctx context.Context, now time.Time) ([]timer.Scheduled, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tenant_id, service_call_id, correlation_id, due_at, registered_at
FROM timer_schedules
WHERE state = 'Scheduled' AND due_at <= ?
ORDER BY due_at ASC, registered_at ASC, service_call_id ASC
`, ts(now))
	if err != nil {
		return nil, wrapPersistence("findDue", err)
	}
	defer rows.Close()

	var due []timer.Scheduled
	for rows.Next() {
		var tenantID, serviceCallID, dueAt, registeredAt string
		var correlationID sql.NullString
		if err := rows.Scan(&tenantID, &serviceCallID, &correlationID, &dueAt, &registeredAt); err != nil {
			return nil, wrapPersistence("findDue", err)
		}
		tID, err := ids.ParseTenantID(tenantID)
		if err != nil {
			return nil, wrapPersistence("findDue", err)
		}
		sID, err := ids.ParseServiceCallID(serviceCallID)
		if err != nil {
			return nil, wrapPersistence("findDue", err)
		}
		dueT, regT, err := parseTimes(dueAt, registeredAt)
		if err != nil {
			return nil, wrapPersistence("findDue", err)
		}
		due = append(due, timer.Scheduled{
			TenantID:      tID,
			ServiceCallID: sID,
			DueAt:         dueT,
			RegisteredAt:  regT,
			CorrelationID: correlationIDPtr(correlationID),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPersistence("findDue", err)
	}
	return due, nil
}

// MarkFired atomically transitions key to Reached, but only if it is
// currently Scheduled; if the row is already Reached or absent, the call
// succeeds without effect — idempotent under at-least-once firing.
func (s *Store) MarkFired(ctx context.Context, key timer.Key, reachedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE timer_schedules SET state = 'Reached', reached_at = ?
WHERE tenant_id = ? AND service_call_id = ? AND state = 'Scheduled'
`, ts(reachedAt), key.TenantID.String(), key.ServiceCallID.String())
	if err != nil {
		return wrapPersistence("markFired", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key timer.Key) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM timer_schedules WHERE tenant_id = ? AND service_call_id = ?
`, key.TenantID.String(), key.ServiceCallID.String())
	if err != nil {
		return wrapPersistence("delete", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable, key timer.Key) (timer.Entry, error) {
	var correlationID sql.NullString
	var dueAt, registeredAt string
	var reachedAt sql.NullString
	var state string
	if err := row.Scan(&correlationID, &dueAt, &registeredAt, &reachedAt, &state); err != nil {
		return nil, err
	}
	due, regAt, err := parseTimes(dueAt, registeredAt)
	if err != nil {
		return nil, err
	}
	corr := correlationIDPtr(correlationID)

	if state == stateReached {
		if !reachedAt.Valid {
			return nil, fmt.Errorf("row %s is Reached but reached_at is null", key)
		}
		reached, err := parseTS(reachedAt.String)
		if err != nil {
			return nil, err
		}
		return timer.Reached{
			TenantID:      key.TenantID,
			ServiceCallID: key.ServiceCallID,
			DueAt:         due,
			RegisteredAt:  regAt,
			ReachedAt:     reached,
			CorrelationID: corr,
		}, nil
	}
	return timer.Scheduled{
		TenantID:      key.TenantID,
		ServiceCallID: key.ServiceCallID,
		DueAt:         due,
		RegisteredAt:  regAt,
		CorrelationID: corr,
	}, nil
}

func correlationIDPtr(v sql.NullString) *ids.CorrelationID {
	if !v.Valid {
		return nil
	}
	c, err := ids.ParseCorrelationID(v.String)
	if err != nil {
		return nil
	}
	return &c
}

func parseTimes(dueAt, registeredAt string) (time.Time, time.Time, error) {
	due, err := parseTS(dueAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse due_at: %w", err)
	}
	reg, err := parseTS(registeredAt)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse registered_at: %w", err)
	}
	return due, reg, nil
}

// timestampLayout is a fixed-width variant of RFC3339Nano: due_at /
// registered_at / reached_at are TEXT columns ordered lexically in SQL, and
// RFC3339Nano drops the fractional part entirely when it's zero, which
// would make a whole-second timestamp sort after one with nonzero
// fractional nanos in the same second ("." < digits/Z lexically).
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func ts(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTS(v string) (time.Time, error) {
	return time.Parse(timestampLayout, v)
}
