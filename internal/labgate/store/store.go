package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Lookup for an identifier that was never
	// provisioned.
	ErrNotFound = errors.New("identity not found")
)

// IdentityRecord is one registered person in the fixed roster.
type IdentityRecord struct {
	ID          string
	Name        string
	Role        string
	AccessLevel string // informational classification, not enforced
	Authorized  bool
}

// RosterStore holds the fixed set of known identities.  Read-mostly:
// Insert happens at provisioning time and is idempotent; SetAuthorized
// is the only permitted mutation afterwards.  Identities are never
// deleted because ledger rows reference them.
type RosterStore interface {
	Lookup(ctx context.Context, id string) (IdentityRecord, error)
	ListAuthorized(ctx context.Context) ([]IdentityRecord, error)
	Insert(ctx context.Context, rec IdentityRecord) error
	SetAuthorized(ctx context.Context, id string, authorized bool) error
}
