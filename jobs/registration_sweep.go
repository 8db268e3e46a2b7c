package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// SweepService is the slice of the registration service the job needs.
type SweepService interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// SweepJob runs the registration period sweep on a schedule. The clock is
// injectable for tests.
type SweepJob struct {
	service SweepService
	logger  *slog.Logger
	now     func() time.Time
}

func NewSweepJob(service SweepService, logger *slog.Logger) *SweepJob {
	return &SweepJob{service: service, logger: logger, now: time.Now}
}

// Handle processes TaskRegistrationSweep tasks. Errors are logged and
// swallowed: the next tick retries anyway, so there is no point letting
// asynq build up a retry backlog for a periodic job.
func (j *SweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	j.Run(ctx)
	return nil
}

// Run executes one sweep immediately. The worker calls this once at
// startup so statuses are correct before the first scheduled tick.
func (j *SweepJob) Run(ctx context.Context) {
	changed, err := j.service.Sweep(ctx, j.now())
	if err != nil {
		j.logger.Error("registration sweep failed", slog.Any("error", err))
		return
	}
	if changed > 0 {
		j.logger.Info("registration sweep done", slog.Int64("changed", changed))
	}
}
