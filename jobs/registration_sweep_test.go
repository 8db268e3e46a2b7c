package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweepService struct {
	calls   []time.Time
	changed int64
	err     error
}

func (f *fakeSweepService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	f.calls = append(f.calls, now)
	return f.changed, f.err
}

func newTestSweepJob(svc SweepService, now time.Time) *SweepJob {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	job := NewSweepJob(svc, logger)
	job.now = func() time.Time { return now }
	return job
}

func TestSweepJobHandle(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 30, 0, time.UTC)
	svc := &fakeSweepService{changed: 2}
	job := newTestSweepJob(svc, now)

	err := job.Handle(context.Background(), NewRegistrationSweepTask())
	require.NoError(t, err)

	require.Len(t, svc.calls, 1)
	assert.Equal(t, now, svc.calls[0])
}

func TestSweepJobSwallowsErrors(t *testing.T) {
	svc := &fakeSweepService{err: errors.New("database down")}
	job := newTestSweepJob(svc, time.Now())

	// A failed sweep must not feed the asynq retry queue; the next tick
	// covers it.
	err := job.Handle(context.Background(), NewRegistrationSweepTask())
	assert.NoError(t, err)
	assert.Len(t, svc.calls, 1)
}

func TestSweepJobRun(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	svc := &fakeSweepService{}
	job := newTestSweepJob(svc, now)

	job.Run(context.Background())
	job.Run(context.Background())

	assert.Len(t, svc.calls, 2)
}
