// Package jobs hosts background schedules that run alongside the API server.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// sweepBatchSize caps how many overdue appointments one sweep run touches.
const sweepBatchSize = 200

// OverdueSweeper marks past appointments that were never attended.
type OverdueSweeper interface {
	MarkOverdueNoShows(ctx context.Context, grace time.Duration, limit int64) (int, error)
}

// NoShowSweep periodically flags SCHEDULED/CONFIRMED appointments whose start
// time passed more than the grace period ago as NO_SHOW.
type NoShowSweep struct {
	sweeper OverdueSweeper
	grace   time.Duration
	spec    string
	logger  zerolog.Logger
	cron    *cron.Cron
}

func NewNoShowSweep(sweeper OverdueSweeper, grace time.Duration, spec string, logger zerolog.Logger) *NoShowSweep {
	return &NoShowSweep{
		sweeper: sweeper,
		grace:   grace,
		spec:    spec,
		logger:  logger.With().Str("component", "noshow_sweep").Logger(),
	}
}

// Start registers the cron entry and launches the scheduler. Returns an error
// when the cron spec does not parse.
func (s *NoShowSweep) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Dur("grace", s.grace).Msg("no-show sweep scheduled")
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (s *NoShowSweep) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *NoShowSweep) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	marked, err := s.sweeper.MarkOverdueNoShows(ctx, s.grace, sweepBatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("no-show sweep failed")
		return
	}
	if marked > 0 {
		s.logger.Info().Int("marked", marked).Msg("no-show sweep completed")
	}
}
