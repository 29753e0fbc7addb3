package service

import (
	"context"
	"fmt"
	"time"

	"github.com/labgate/labgate/internal/labgate/store"
	"github.com/labgate/labgate/internal/labgate/types"
)

const (
	// DefaultPresenceWindow bounds how long an unclosed Inside transition
	// still counts as "currently inside".
	DefaultPresenceWindow = 24 * time.Hour

	// DefaultHistoryLimit bounds the recent-history read path.
	DefaultHistoryLimit = 100
)

// ViewService derives the two read-only projections from the ledger.
// It never writes.
type ViewService struct {
	ledger       store.LedgerStore
	window       time.Duration
	historyLimit int
}

func NewViewService(ledger store.LedgerStore, window time.Duration, historyLimit int) *ViewService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ViewService{ledger: ledger, window: window, historyLimit: historyLimit}
}

// CurrentlyInside returns one row per identity whose latest record within
// the trailing window is an Inside transition.  A person whose Entry is
// older than the window drops off the list even if they never scanned out.
func (s *ViewService) CurrentlyInside(ctx context.Context) ([]types.ActiveEntry, error) {
	recs, err := s.ledger.InsideWithin(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("inside within window: %w", err)
	}

	out := make([]types.ActiveEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, types.ActiveEntry{
			UserID:    rec.IdentityID,
			Name:      rec.Name,
			Role:      rec.Role,
			Timestamp: rec.RecordedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

// RecentHistory returns the newest ledger rows, bounded by the configured
// limit, newest first by seq.
func (s *ViewService) RecentHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	recs, err := s.ledger.Recent(ctx, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}

	out := make([]types.HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, types.HistoryEntry{
			Seq:       rec.Seq,
			UserID:    rec.IdentityID,
			Name:      rec.Name,
			Role:      rec.Role,
			Action:    string(rec.Action),
			Status:    string(rec.Status),
			Timestamp: rec.RecordedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}
