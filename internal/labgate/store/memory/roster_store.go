package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/labgate/labgate/internal/labgate/store"
)

type RosterStore struct {
	mu         sync.RWMutex
	identities map[string]store.IdentityRecord
}

func NewRosterStore(identities ...store.IdentityRecord) *RosterStore {
	s := &RosterStore{identities: make(map[string]store.IdentityRecord, len(identities))}
	for _, rec := range identities {
		rec.ID = strings.TrimSpace(rec.ID)
		if rec.ID != "" {
			s.identities[rec.ID] = rec
		}
	}
	return s
}

func (s *RosterStore) Lookup(_ context.Context, id string) (store.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.identities[strings.TrimSpace(id)]
	if !ok {
		return store.IdentityRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *RosterStore) ListAuthorized(_ context.Context) ([]store.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.IdentityRecord
	for _, rec := range s.identities {
		if rec.Authorized {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RosterStore) Insert(_ context.Context, rec store.IdentityRecord) error {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Idempotent: an existing id keeps its current record.
	if _, ok := s.identities[rec.ID]; ok {
		return nil
	}
	s.identities[rec.ID] = rec
	return nil
}

func (s *RosterStore) SetAuthorized(_ context.Context, id string, authorized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.identities[strings.TrimSpace(id)]
	if !ok {
		return store.ErrNotFound
	}
	rec.Authorized = authorized
	s.identities[rec.ID] = rec
	return nil
}
