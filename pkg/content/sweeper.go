package content

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gurulk/platform/pkg/observability"
)

// DefaultSweepSchedule purges expired downloads once an hour.
const DefaultSweepSchedule = "0 * * * *"

// sweepTimeout bounds a single purge run
const sweepTimeout = 30 * time.Second

// Sweeper runs the expired-download purge on a cron schedule.
type Sweeper struct {
	service  *Service
	logger   *observability.Logger
	schedule string
	cron     *cron.Cron
}

// NewSweeper creates a sweeper. An empty schedule falls back to the
// hourly default.
func NewSweeper(service *Service, logger *observability.Logger, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		service:  service,
		logger:   logger,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start schedules the purge job and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("download sweeper started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("download sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.service.PurgeExpiredDownloads(ctx); err != nil {
		s.logger.WithError(err).Error("download sweep failed")
	}
}
