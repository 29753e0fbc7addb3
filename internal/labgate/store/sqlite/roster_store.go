package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/labgate/labgate/internal/db"
	"github.com/labgate/labgate/internal/labgate/store"
)

type RosterStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRosterStore(db *sql.DB, writer *dbpkg.Worker) *RosterStore {
	return &RosterStore{db: db, writer: writer}
}

func (s *RosterStore) Lookup(ctx context.Context, id string) (store.IdentityRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.IdentityRecord{}, store.ErrNotFound
	}

	var rec store.IdentityRecord
	var authorized int
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, role, access_level, authorized
FROM identities
WHERE id = ?;
`, id).Scan(&rec.ID, &rec.Name, &rec.Role, &rec.AccessLevel, &authorized)

	if err == sql.ErrNoRows {
		return store.IdentityRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.IdentityRecord{}, fmt.Errorf("Lookup query: %w", err)
	}

	rec.Authorized = authorized == 1
	return rec, nil
}

func (s *RosterStore) ListAuthorized(ctx context.Context) ([]store.IdentityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, role, access_level
FROM identities
WHERE authorized = 1
ORDER BY id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListAuthorized query: %w", err)
	}
	defer rows.Close()

	var out []store.IdentityRecord
	for rows.Next() {
		rec := store.IdentityRecord{Authorized: true}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Role, &rec.AccessLevel); err != nil {
			return nil, fmt.Errorf("ListAuthorized scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAuthorized rows: %w", err)
	}
	return out, nil
}

// Insert is idempotent: re-inserting an existing id is a no-op, never an
// error, so re-provisioning on restart is safe.
func (s *RosterStore) Insert(ctx context.Context, rec store.IdentityRecord) error {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return nil
	}
	if rec.AccessLevel == "" {
		rec.AccessLevel = "Full"
	}

	var authorized int
	if rec.Authorized {
		authorized = 1
	}
	now := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO identities(
  id, name, role, access_level, authorized, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.Name, rec.Role, rec.AccessLevel, authorized, now, now); err != nil {
			return fmt.Errorf("Insert identity %s: %w", rec.ID, err)
		}
		return nil
	})
}

func (s *RosterStore) SetAuthorized(ctx context.Context, id string, authorized bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrNotFound
	}

	var v int
	if authorized {
		v = 1
	}
	now := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE identities
SET authorized = ?,
    updated_at_ms = ?
WHERE id = ?;
`, v, now, id)
		if err != nil {
			return fmt.Errorf("SetAuthorized update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("SetAuthorized rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}
