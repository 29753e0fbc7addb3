package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoRecords is returned by LastFor when an identity has never scanned.
var ErrNoRecords = errors.New("no presence records")

type Action string

const (
	ActionEntry Action = "Entry"
	ActionExit  Action = "Exit"
)

type Status string

const (
	StatusInside  Status = "Inside"
	StatusOutside Status = "Outside"
)

// PresenceRecord is one immutable ledger entry.  Seq is assigned at
// append time and is the only reliable ordering key; RecordedAt is
// display-only.  Name and Role are a snapshot of the identity at write
// time so renames do not rewrite history.
type PresenceRecord struct {
	Seq        int64
	IdentityID string
	Name       string
	Role       string
	Action     Action
	Status     Status
	RecordedAt time.Time
}

// LedgerStore is durable, ordered, append-only storage for presence
// records.  No update, no delete.
type LedgerStore interface {
	// LastFor returns the highest-seq record for the identity, reflecting
	// all previously committed appends.  ErrNoRecords if there are none.
	LastFor(ctx context.Context, identityID string) (PresenceRecord, error)

	// Append writes a new record and returns its seq.  Seq is strictly
	// increasing across the whole ledger in commit order and never reused.
	Append(ctx context.Context, rec PresenceRecord) (int64, error)

	// Recent returns up to limit records, newest first by seq.
	Recent(ctx context.Context, limit int) ([]PresenceRecord, error)

	// InsideWithin returns, per identity, its most recent record within
	// the trailing window, filtered to those whose status is Inside.
	// One record per identity, newest first by RecordedAt.
	InsideWithin(ctx context.Context, window time.Duration) ([]PresenceRecord, error)
}
