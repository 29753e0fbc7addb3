package memory

import (
	"context"
	"sync"
	"time"

	"github.com/labgate/labgate/internal/labgate/store"
)

// LedgerStore is an in-memory append-only presence ledger.  It is
// intended for use in tests and dev environments.
type LedgerStore struct {
	mu      sync.Mutex
	records []store.PresenceRecord
	nextSeq int64
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{nextSeq: 1}
}

func (s *LedgerStore) LastFor(_ context.Context, identityID string) (store.PresenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].IdentityID == identityID {
			return s.records[i], nil
		}
	}
	return store.PresenceRecord{}, store.ErrNoRecords
}

func (s *LedgerStore) Append(_ context.Context, rec store.PresenceRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	rec.Seq = s.nextSeq
	s.nextSeq++
	s.records = append(s.records, rec)
	return rec.Seq, nil
}

func (s *LedgerStore) Recent(_ context.Context, limit int) ([]store.PresenceRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.PresenceRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *LedgerStore) InsideWithin(_ context.Context, window time.Duration) ([]store.PresenceRecord, error) {
	cutoff := time.Now().UTC().Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest-first walk: the first in-window record seen per identity is
	// its latest; keep it only when it is an Inside transition.
	seen := make(map[string]struct{})
	var out []store.PresenceRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if !rec.RecordedAt.After(cutoff) {
			continue
		}
		if _, ok := seen[rec.IdentityID]; ok {
			continue
		}
		seen[rec.IdentityID] = struct{}{}
		if rec.Status == store.StatusInside {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Records returns a copy of the full ledger in append order.  Test-only helper.
func (s *LedgerStore) Records() []store.PresenceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.PresenceRecord, len(s.records))
	copy(out, s.records)
	return out
}
