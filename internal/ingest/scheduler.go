package ingest

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/lox/marinedash/internal/models"
)

const DefaultProbeInterval = 30 * time.Minute

// Scheduler periodically aggregates every region so upstream health is
// recorded even when nobody is looking at the dashboard. Records are
// discarded after each probe.
type Scheduler struct {
	recorder *Recorder
	regions  []models.Region
	interval time.Duration
	clock    clockwork.Clock
	logger   zerolog.Logger
}

func NewScheduler(recorder *Recorder, interval time.Duration, clock clockwork.Clock, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		recorder: recorder,
		regions:  models.Regions(),
		interval: interval,
		clock:    clock,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.ProbeAll(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("shutting down")
			return
		case <-ticker.Chan():
			s.ProbeAll(ctx)
		}
	}
}

// ProbeAll aggregates each region once and returns the number that failed.
func (s *Scheduler) ProbeAll(ctx context.Context) int {
	failed := 0
	for _, region := range s.regions {
		if ctx.Err() != nil {
			return failed
		}
		if _, _, err := s.recorder.Fetch(ctx, region, "probe"); err != nil {
			failed++
			s.logger.Warn().Err(err).Str("region", string(region)).Msg("probe failed")
		}
	}
	s.logger.Info().Int("regions", len(s.regions)).Int("failed", failed).Msg("probe complete")
	return failed
}
