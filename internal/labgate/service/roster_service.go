package service

import (
	"context"
	"strings"

	"github.com/labgate/labgate/internal/labgate/store"
	"github.com/labgate/labgate/internal/labgate/types"
)

// RosterService fronts the roster store for the gateway.
type RosterService struct {
	store store.RosterStore
}

func NewRosterService(st store.RosterStore) *RosterService {
	return &RosterService{store: st}
}

func (r *RosterService) Lookup(ctx context.Context, id string) (types.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.User{}, store.ErrNotFound
	}
	rec, err := r.store.Lookup(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	return toUser(rec), nil
}

func (r *RosterService) ListAuthorized(ctx context.Context) ([]types.User, error) {
	recs, err := r.store.ListAuthorized(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.User, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toUser(rec))
	}
	return out, nil
}

func (r *RosterService) SetAuthorized(ctx context.Context, id string, authorized bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrNotFound
	}
	return r.store.SetAuthorized(ctx, id, authorized)
}

func toUser(rec store.IdentityRecord) types.User {
	return types.User{
		ID:          rec.ID,
		Name:        rec.Name,
		Role:        rec.Role,
		AccessLevel: rec.AccessLevel,
		Authorized:  rec.Authorized,
	}
}
