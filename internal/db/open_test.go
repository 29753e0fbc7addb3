package db_test

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/labgate/labgate/internal/db"
	"github.com/labgate/labgate/internal/labgate/store"
)

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func TestOpen_FreshDatabase_Migrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labgate.db")

	conn, err := db.Open(context.Background(), db.Config{Path: path, Logger: discard()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM presence_records`).Scan(&n); err != nil {
		t.Fatalf("schema missing after Open: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty ledger, got %d rows", n)
	}
}

func TestOpen_CorruptFile_AbortRefusesToStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labgate.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database, not even close"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	_, err := db.Open(context.Background(), db.Config{
		Path:     path,
		Recovery: db.RecoveryAbort,
		Logger:   discard(),
	})
	if err == nil {
		t.Fatal("expected Open to fail against a corrupt file in abort mode")
	}
}

func TestOpen_CorruptFile_ResetSetsAsideAndRecreates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labgate.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database, not even close"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	conn, err := db.Open(context.Background(), db.Config{
		Path:     path,
		Recovery: db.RecoveryReset,
		Logger:   discard(),
	})
	if err != nil {
		t.Fatalf("Open with reset: %v", err)
	}
	defer conn.Close()

	// Fresh schema is usable.
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		t.Fatalf("schema missing after reset: %v", err)
	}

	// The corrupt file was moved aside, not deleted: the corruption stays
	// auditable on disk.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			found = true
		}
	}
	if !found {
		t.Error("expected the corrupt file to be set aside with a .corrupt- suffix")
	}
}

func TestProvisionRoster_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labgate.db")
	conn, err := db.Open(context.Background(), db.Config{Path: path, Logger: discard()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	roster := []store.IdentityRecord{
		{ID: "7001", Name: "Jaibharathi", Role: "student", AccessLevel: "Full", Authorized: true},
		{ID: "7002", Name: "Manikandan", Role: "student", AccessLevel: "Restricted", Authorized: true},
	}

	ctx := context.Background()
	if err := db.ProvisionRoster(ctx, conn, roster); err != nil {
		t.Fatalf("first provision: %v", err)
	}
	// A restart re-provisions the same roster; this must be a no-op.
	if err := db.ProvisionRoster(ctx, conn, roster); err != nil {
		t.Fatalf("second provision: %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 identity rows after double provision, got %d", n)
	}
}

func TestLoadRosterFile_ParsesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	content := `
- id: "7001"
  name: Jaibharathi
  role: student
  access_level: Full
- id: "7002"
  name: Manikandan
  authorized: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	roster, err := db.LoadRosterFile(path)
	if err != nil {
		t.Fatalf("LoadRosterFile: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(roster))
	}
	if !roster[0].Authorized {
		t.Error("expected authorized to default to true")
	}
	if roster[1].Authorized {
		t.Error("expected explicit authorized=false to stick")
	}
	if roster[1].Role != "student" || roster[1].AccessLevel != "Full" {
		t.Errorf("expected role/access_level defaults, got %q/%q", roster[1].Role, roster[1].AccessLevel)
	}
}

func TestLoadRosterFile_MissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte("- name: Nameless\n"), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	if _, err := db.LoadRosterFile(path); err == nil {
		t.Fatal("expected an error for a roster entry with no id")
	}
}
