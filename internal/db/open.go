package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RecoveryMode controls what Open does when the database file fails its
// startup integrity check.
type RecoveryMode string

const (
	// RecoveryAbort refuses to start against a database that cannot be
	// trusted.  This is the default.
	RecoveryAbort RecoveryMode = "abort"

	// RecoveryReset moves the corrupt file aside and starts from an empty
	// schema.  Presence history is lost; the roster is re-provisioned by
	// the caller.  Availability over serving garbage.
	RecoveryReset RecoveryMode = "reset"
)

type Config struct {
	Path     string // e.g. "./data/labgate.db"
	Recovery RecoveryMode
	Logger   *log.Logger
}

func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/labgate.db"
	}
	if cfg.Recovery == "" {
		cfg.Recovery = RecoveryAbort
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	// Ensure DB parent directory exists.
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	conn, err := open(ctx, cfg.Path)
	if err != nil {
		if cfg.Recovery != RecoveryReset {
			return nil, fmt.Errorf("db open: %w (recovery=abort, refusing to start)", err)
		}
		cfg.Logger.Printf("db open failed (%v); recovery=reset, starting from an empty database", err)
		if err := setAside(cfg.Path, cfg.Logger); err != nil {
			return nil, err
		}
		conn, err = open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("db open after reset: %w", err)
		}
	}

	// Apply migrations.
	if err := Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// open dials the database and verifies it can be trusted.  A failed
// integrity check is returned as an error so the caller can apply the
// configured recovery policy; nothing is deleted here.
func open(ctx context.Context, path string) (*sql.DB, error) {
	// modernc.org/sqlite DSN with per-connection PRAGMAs.
	// These are good defaults for a single-process server:
	// - foreign_keys ON
	// - WAL for better concurrency
	// - synchronous NORMAL for performance with good safety
	// - busy_timeout to reduce SQLITE_BUSY under load
	dsn := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Strong safety for SQLite in servers: single connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := integrityCheck(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// IntegrityCheck runs SQLite's built-in consistency scan.  A healthy
// database answers with a single "ok" row.
func IntegrityCheck(ctx context.Context, conn *sql.DB) error {
	return integrityCheck(ctx, conn)
}

func integrityCheck(ctx context.Context, conn *sql.DB) error {
	var result string
	if err := conn.QueryRowContext(ctx, "PRAGMA integrity_check;").Scan(&result); err != nil {
		return fmt.Errorf("integrity_check: %w", err)
	}
	if !strings.EqualFold(result, "ok") {
		return fmt.Errorf("integrity_check failed: %s", result)
	}
	return nil
}

// setAside renames the corrupt database file (and its WAL/SHM siblings)
// with a timestamp suffix so the corruption remains auditable on disk.
func setAside(path string, logger *log.Logger) error {
	suffix := ".corrupt-" + time.Now().UTC().Format("20060102T150405Z")
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		dst := p + suffix
		if err := os.Rename(p, dst); err != nil {
			return fmt.Errorf("set aside %s: %w", p, err)
		}
		logger.Printf("moved corrupt database file %s -> %s", p, dst)
	}
	return nil
}
