package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRegistrationSweep reconciles registration period statuses with the clock.
	TaskRegistrationSweep = "registration:sweep"
)

// NewRegistrationSweepTask constructs the sweep task. The sweep reads the
// clock when it runs, so the task carries no payload.
func NewRegistrationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRegistrationSweep, nil)
}
