package daemon

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"github.com/lejeunerenard/file-assets/internal/errors"
)

// Scheduler wraps gocron for periodic full exports.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler creates a scheduler that fires on the given cron expression.
func NewScheduler(schedule string, fire func(cause string), logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create scheduler")
	}

	_, err = s.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			logger.Info("scheduled export tick", slog.String("schedule", schedule))
			fire("schedule")
		}),
		gocron.WithName("scheduled-export"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to schedule export job").
			WithContext("schedule", schedule)
	}

	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.logger.Info("scheduler stopping")
	return s.scheduler.Shutdown()
}
