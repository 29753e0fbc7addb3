package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/labgate/labgate/internal/labgate/store"
)

// rosterEntry is one row of the YAML roster file.
type rosterEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Role        string `yaml:"role"`
	AccessLevel string `yaml:"access_level"`
	Authorized  *bool  `yaml:"authorized"` // default true when omitted
}

// LoadRosterFile parses a YAML roster: a list of {id, name, role,
// access_level, authorized} entries.
func LoadRosterFile(path string) ([]store.IdentityRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}

	var entries []rosterEntry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}

	out := make([]store.IdentityRecord, 0, len(entries))
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("roster %s: entry %d has no id", path, i)
		}
		rec := store.IdentityRecord{
			ID:          id,
			Name:        strings.TrimSpace(e.Name),
			Role:        strings.TrimSpace(e.Role),
			AccessLevel: strings.TrimSpace(e.AccessLevel),
			Authorized:  true,
		}
		if rec.Role == "" {
			rec.Role = "student"
		}
		if rec.AccessLevel == "" {
			rec.AccessLevel = "Full"
		}
		if e.Authorized != nil {
			rec.Authorized = *e.Authorized
		}
		out = append(out, rec)
	}
	return out, nil
}

// ProvisionRoster inserts the identities in one transaction with
// INSERT OR IGNORE, so re-provisioning on every restart is a no-op for
// ids that already exist.
func ProvisionRoster(ctx context.Context, conn *sql.DB, identities []store.IdentityRecord) error {
	if len(identities) == 0 {
		return nil
	}
	now := time.Now().UTC().UnixMilli()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("provision roster begin: %w", err)
	}

	for _, rec := range identities {
		var authorized int
		if rec.Authorized {
			authorized = 1
		}
		accessLevel := rec.AccessLevel
		if accessLevel == "" {
			accessLevel = "Full"
		}
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO identities(
  id, name, role, access_level, authorized, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.Name, rec.Role, accessLevel, authorized, now, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("provision identity %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("provision roster commit: %w", err)
	}
	return nil
}

// DevRoster is the built-in roster seeded in dev when no roster file is
// configured.
func DevRoster() []store.IdentityRecord {
	return []store.IdentityRecord{
		{ID: "7001", Name: "Jaibharathi", Role: "student", AccessLevel: "Full", Authorized: true},
		{ID: "7002", Name: "Manikandan", Role: "student", AccessLevel: "Restricted", Authorized: true},
		{ID: "7003", Name: "Mathan", Role: "student", AccessLevel: "Full", Authorized: true},
		{ID: "7004", Name: "Gowrisankar", Role: "student", AccessLevel: "Restricted", Authorized: true},
		{ID: "7005", Name: "Priya", Role: "staff", AccessLevel: "Full", Authorized: true},
	}
}
