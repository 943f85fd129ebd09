package api

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/marinedash/internal/models"
)

// snapshots keeps the record most recently rendered for each region so the
// chart and card images on a page draw from the same aggregation as the page.
type snapshots struct {
	mu    sync.RWMutex
	recs  map[models.Region]snapshot
	ttl   time.Duration
	clock clockwork.Clock
}

type snapshot struct {
	rec       *models.MarineRecord
	expiresAt time.Time
}

func newSnapshots(ttl time.Duration, clock clockwork.Clock) *snapshots {
	return &snapshots{recs: make(map[models.Region]snapshot), ttl: ttl, clock: clock}
}

func (s *snapshots) get(region models.Region) (*models.MarineRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.recs[region]
	if !ok || s.clock.Now().After(snap.expiresAt) {
		return nil, false
	}
	return snap.rec, true
}

func (s *snapshots) put(rec *models.MarineRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.Region] = snapshot{rec: rec, expiresAt: s.clock.Now().Add(s.ttl)}
}

// imageRecord returns the record images for region are rendered from. A page
// view leaves its record behind; otherwise concurrent image requests for a
// region share one aggregation.
func (s *Server) imageRecord(ctx context.Context, region models.Region) (*models.MarineRecord, error) {
	if rec, ok := s.snapshots.get(region); ok {
		return rec, nil
	}

	v, err, _ := s.flights.Do(string(region), func() (any, error) {
		// Shared by every waiter, so one client going away must not cancel it.
		rec, _, err := s.recorder.Fetch(context.WithoutCancel(ctx), region, "api")
		if err != nil {
			return nil, err
		}
		s.snapshots.put(rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MarineRecord), nil
}

func imageKey(kind string, rec *models.MarineRecord, parts ...string) string {
	key := kind + ":" + string(rec.Region)
	for _, p := range parts {
		key += ":" + p
	}
	return key + "@" + rec.FetchedAt.Format(time.RFC3339Nano)
}
