package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labgate/labgate/internal/labgate/store"
	"github.com/labgate/labgate/internal/labgate/types"
	"github.com/labgate/labgate/internal/obs"
)

var (
	ErrEmptyIdentifier = errors.New("identifier is required")

	// ErrInvalidUser covers both an unknown id and an unauthorized one.
	// Collapsed into a single outcome so a rejected scan does not reveal
	// which of the two it was.
	ErrInvalidUser = errors.New("invalid user")
)

// ToggleService owns the single authoritative Entry-vs-Exit decision.
// It is the only component that appends to the ledger.
type ToggleService struct {
	roster store.RosterStore
	ledger store.LedgerStore
	locks  *keyedMutex
}

func NewToggleService(roster store.RosterStore, ledger store.LedgerStore) *ToggleService {
	return &ToggleService{
		roster: roster,
		ledger: ledger,
		locks:  newKeyedMutex(),
	}
}

// RecordScan toggles the identity's presence state and appends exactly
// one ledger record.  Rejected scans (empty id, unknown id, unauthorized)
// append nothing.
func (s *ToggleService) RecordScan(ctx context.Context, id string) (types.ScanResponse, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		obs.ScanRejected("empty_id")
		return types.ScanResponse{}, ErrEmptyIdentifier
	}

	identity, err := s.roster.Lookup(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		obs.ScanRejected("invalid_user")
		return types.ScanResponse{}, ErrInvalidUser
	}
	if err != nil {
		obs.ScanRejected("storage")
		return types.ScanResponse{}, fmt.Errorf("roster lookup: %w", err)
	}
	if !identity.Authorized {
		obs.ScanRejected("invalid_user")
		return types.ScanResponse{}, ErrInvalidUser
	}

	// Read-last-record and append are one critical section per identity.
	// Without this, two concurrent scans of the same id can both observe
	// the same prior status and both append Entry.
	unlock := s.locks.lock(id)
	defer unlock()

	last, err := s.ledger.LastFor(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNoRecords) {
		obs.ScanRejected("storage")
		return types.ScanResponse{}, fmt.Errorf("last record: %w", err)
	}

	// Strict two-state toggle: first ever scan, or last status Outside,
	// means Entry; last status Inside means Exit.  No timeout-based
	// auto-exit, no grace period.
	action, status := store.ActionEntry, store.StatusInside
	if err == nil && last.Status == store.StatusInside {
		action, status = store.ActionExit, store.StatusOutside
	}

	rec := store.PresenceRecord{
		IdentityID: identity.ID,
		Name:       identity.Name,
		Role:       identity.Role,
		Action:     action,
		Status:     status,
		RecordedAt: time.Now().UTC(),
	}

	seq, err := s.ledger.Append(ctx, rec)
	if err != nil {
		obs.ScanRejected("storage")
		return types.ScanResponse{}, fmt.Errorf("ledger append: %w", err)
	}

	obs.ScanRecorded(string(action))

	return types.ScanResponse{
		Success:   true,
		Action:    string(action),
		Status:    string(status),
		Seq:       seq,
		Timestamp: rec.RecordedAt.Format(time.RFC3339),
	}, nil
}
