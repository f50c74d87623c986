package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"taskboard/internal/models"
)

// Materializer is the part of the task service the scheduler triggers.
type Materializer interface {
	MaterializeAll(ctx context.Context, asOf time.Time) ([]models.Task, error)
}

// Scheduler wraps cron-based jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a scheduler evaluating specs in loc.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		logger: logger,
	}
}

// ScheduleInterval registers a periodic job every given duration.
func (s *Scheduler) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	spec, err := intervalSpec(interval)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleMaterialization runs m.MaterializeAll every interval, each run
// bounded by timeout.
func (s *Scheduler) ScheduleMaterialization(interval, timeout time.Duration, m Materializer, now func() time.Time) (cron.EntryID, error) {
	if now == nil {
		now = time.Now
	}
	return s.ScheduleInterval(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		created, err := m.MaterializeAll(ctx, now())
		if err != nil {
			s.logger.Error("scheduled materialization failed", slog.String("error", err.Error()))
		}
		if len(created) > 0 {
			s.logger.Info("scheduled materialization", slog.Int("created", len(created)))
		}
	})
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func intervalSpec(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	// Cron's @every has second resolution.
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("@every %ds", seconds), nil
}
