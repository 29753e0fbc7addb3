package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/labgate/labgate/internal/db"
	"github.com/labgate/labgate/internal/labgate/store"
)

type LedgerStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewLedgerStore(db *sql.DB, writer *dbpkg.Worker) *LedgerStore {
	return &LedgerStore{db: db, writer: writer}
}

func (s *LedgerStore) LastFor(ctx context.Context, identityID string) (store.PresenceRecord, error) {
	// Walks idx_presence_identity_seq backwards; O(log n).
	row := s.db.QueryRowContext(ctx, `
SELECT seq, identity_id, name, role, action, status, recorded_at_ms
FROM presence_records
WHERE identity_id = ?
ORDER BY seq DESC
LIMIT 1;
`, identityID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return store.PresenceRecord{}, store.ErrNoRecords
	}
	if err != nil {
		return store.PresenceRecord{}, fmt.Errorf("LastFor query: %w", err)
	}
	return rec, nil
}

func (s *LedgerStore) Append(ctx context.Context, rec store.PresenceRecord) (int64, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	recordedMs := rec.RecordedAt.UTC().UnixMilli()

	var seq int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO presence_records(
  identity_id, name, role, action, status, recorded_at_ms
) VALUES (?, ?, ?, ?, ?, ?);
`, rec.IdentityID, rec.Name, rec.Role, string(rec.Action), string(rec.Status), recordedMs)
		if err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}

		seq, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("Append last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *LedgerStore) Recent(ctx context.Context, limit int) ([]store.PresenceRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	// seq, not recorded_at_ms, is the sort key: timestamps collide at the
	// same wall-clock instant, seq never does.
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, identity_id, name, role, action, status, recorded_at_ms
FROM presence_records
ORDER BY seq DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (s *LedgerStore) InsideWithin(ctx context.Context, window time.Duration) ([]store.PresenceRecord, error) {
	cutoffMs := time.Now().UTC().Add(-window).UnixMilli()

	// Per identity, the highest-seq record inside the window; keep it only
	// if that record is an Inside transition.  An Inside older than the
	// window drops out even when no Exit was ever recorded.
	rows, err := s.db.QueryContext(ctx, `
SELECT p.seq, p.identity_id, p.name, p.role, p.action, p.status, p.recorded_at_ms
FROM presence_records p
JOIN (
  SELECT identity_id, MAX(seq) AS max_seq
  FROM presence_records
  WHERE recorded_at_ms > ?
  GROUP BY identity_id
) latest ON p.identity_id = latest.identity_id AND p.seq = latest.max_seq
WHERE p.status = 'Inside'
ORDER BY p.recorded_at_ms DESC, p.seq DESC;
`, cutoffMs)
	if err != nil {
		return nil, fmt.Errorf("InsideWithin query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (store.PresenceRecord, error) {
	var rec store.PresenceRecord
	var action, status string
	var recordedMs int64

	err := row.Scan(&rec.Seq, &rec.IdentityID, &rec.Name, &rec.Role, &action, &status, &recordedMs)
	if err != nil {
		return store.PresenceRecord{}, err
	}

	rec.Action = store.Action(action)
	rec.Status = store.Status(status)
	rec.RecordedAt = time.UnixMilli(recordedMs).UTC()
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]store.PresenceRecord, error) {
	var out []store.PresenceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan presence record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence record rows: %w", err)
	}
	return out, nil
}
