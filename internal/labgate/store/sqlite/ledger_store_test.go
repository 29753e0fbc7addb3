package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labgate/labgate/internal/labgate/store"
	sqlitestore "github.com/labgate/labgate/internal/labgate/store/sqlite"
)

func entryAt(id, name string, status store.Status, at time.Time) store.PresenceRecord {
	action := store.ActionEntry
	if status == store.StatusOutside {
		action = store.ActionExit
	}
	return store.PresenceRecord{
		IdentityID: id,
		Name:       name,
		Role:       "student",
		Action:     action,
		Status:     status,
		RecordedAt: at,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Append / LastFor
// ═══════════════════════════════════════════════════════════════════════════

func TestLedgerStore_Append_AssignsIncreasingSeq(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "7001", "Jaibharathi", true)
	ls := sqlitestore.NewLedgerStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	var prev int64
	for i := 0; i < 5; i++ {
		status := store.StatusInside
		if i%2 == 1 {
			status = store.StatusOutside
		}
		seq, err := ls.Append(ctx, entryAt("7001", "Jaibharathi", status, now))
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		if seq <= prev {
			t.Fatalf("seq not increasing: got %d after %d", seq, prev)
		}
		prev = seq
	}
}

func TestLedgerStore_LastFor_ReturnsHighestSeq(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "7001", "Jaibharathi", true)
	seedIdentity(t, conn, "7002", "Manikandan", true)
	ls := sqlitestore.NewLedgerStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	if _, err := ls.Append(ctx, entryAt("7001", "Jaibharathi", store.StatusInside, now)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := ls.Append(ctx, entryAt("7002", "Manikandan", store.StatusInside, now)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := ls.Append(ctx, entryAt("7001", "Jaibharathi", store.StatusOutside, now)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	last, err := ls.LastFor(ctx, "7001")
	if err != nil {
		t.Fatalf("LastFor: %v", err)
	}
	if last.Status != store.StatusOutside || last.Action != store.ActionExit {
		t.Errorf("expected latest Exit/Outside, got %s/%s", last.Action, last.Status)
	}

	// The other identity's records must not bleed in.
	other, err := ls.LastFor(ctx, "7002")
	if err != nil {
		t.Fatalf("LastFor 7002: %v", err)
	}
	if other.Status != store.StatusInside {
		t.Errorf("expected 7002 still Inside, got %s", other.Status)
	}
}

func TestLedgerStore_LastFor_NoRecords(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ls := sqlitestore.NewLedgerStore(conn, w)

	_, err := ls.LastFor(context.Background(), "7001")
	if !errors.Is(err, store.ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
}

func TestLedgerStore_Append_SnapshotSurvivesRename(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "7001", "Jaibharathi", true)
	ls := sqlitestore.NewLedgerStore(conn, w)
	ctx := context.Background()

	if _, err := ls.Append(ctx, entryAt("7001", "Jaibharathi", store.StatusInside, time.Now().UTC())); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Rename the identity after the fact; history must keep the snapshot.
	if _, err := conn.ExecContext(ctx, `UPDATE identities SET name = 'Renamed' WHERE id = '7001'`); err != nil {
		t.Fatalf("rename: %v", err)
	}

	last, err := ls.LastFor(ctx, "7001")
	if err != nil {
		t.Fatalf("LastFor: %v", err)
	}
	if last.Name != "Jaibharathi" {
		t.Errorf("snapshot rewritten by rename: name=%q", last.Name)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Recent
// ═══════════════════════════════════════════════════════════════════════════

func TestLedgerStore_Recent_NewestFirstBySeq(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "7001", "Jaibharathi", true)
	ls := sqlitestore.NewLedgerStore(conn, w)
	ctx := context.Background()

	// Same wall-clock timestamp for every record: only seq can order them.
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		status := store.StatusInside
		if i%2 == 1 {
			status = store.StatusOutside
		}
		if _, err := ls.Append(ctx, entryAt("7001", "Jaibharathi", status, at)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	recs, err := ls.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %d", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Seq >= recs[i-1].Seq {
			t.Errorf("expected seq descending, got %d before %d", recs[i-1].Seq, recs[i].Seq)
		}
	}
}

func TestLedgerStore_Recent_DefaultLimit(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ls := sqlitestore.NewLedgerStore(conn, w)

	recs, err := ls.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty ledger, got %d records", len(recs))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// InsideWithin
// ═══════════════════════════════════════════════════════════════════════════

func TestLedgerStore_InsideWithin_FiltersAndDeduplicates(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "7001", "Jaibharathi", true)
	seedIdentity(t, conn, "7002", "Manikandan", true)
	seedIdentity(t, conn, "7003", "Mathan", true)
	ls := sqlitestore.NewLedgerStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	// 7001: inside, recent.
	mustAppend(t, ls, entryAt("7001", "Jaibharathi", store.StatusInside, now.Add(-time.Hour)))
	// 7002: entered then exited.
	mustAppend(t, ls, entryAt("7002", "Manikandan", store.StatusInside, now.Add(-3*time.Hour)))
	mustAppend(t, ls, entryAt("7002", "Manikandan", store.StatusOutside, now.Add(-2*time.Hour)))
	// 7003: stale unclosed Entry, outside the window.
	mustAppend(t, ls, entryAt("7003", "Mathan", store.StatusInside, now.Add(-48*time.Hour)))

	recs, err := ls.InsideWithin(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("InsideWithin: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 identity inside, got %d", len(recs))
	}
	if recs[0].IdentityID != "7001" {
		t.Errorf("expected 7001 inside, got %q", recs[0].IdentityID)
	}
}

func TestLedgerStore_InsideWithin_ReentryWithinWindowCounts(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedIdentity(t, conn, "7001", "Jaibharathi", true)
	ls := sqlitestore.NewLedgerStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	// Old exit outside the window, fresh entry inside it.
	mustAppend(t, ls, entryAt("7001", "Jaibharathi", store.StatusInside, now.Add(-50*time.Hour)))
	mustAppend(t, ls, entryAt("7001", "Jaibharathi", store.StatusOutside, now.Add(-49*time.Hour)))
	mustAppend(t, ls, entryAt("7001", "Jaibharathi", store.StatusInside, now.Add(-time.Hour)))

	recs, err := ls.InsideWithin(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("InsideWithin: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected re-entered identity to count, got %d records", len(recs))
	}
}

func mustAppend(t *testing.T, ls *sqlitestore.LedgerStore, rec store.PresenceRecord) {
	t.Helper()
	if _, err := ls.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
}
