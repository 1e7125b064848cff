package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubCleaner struct {
	err  error
	seen []time.Duration
}

func (s *stubCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.seen = append(s.seen, olderThan)
	return s.err
}

func TestIdempotencyCleanupJobHandle(t *testing.T) {
	task, err := NewIdempotencyCleanupTask(48)
	require.NoError(t, err)

	cleaner := &stubCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, discardLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []time.Duration{48 * time.Hour}, cleaner.seen)
}

func TestIdempotencyCleanupJobDefaultsRetention(t *testing.T) {
	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)

	cleaner := &stubCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, discardLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []time.Duration{24 * time.Hour}, cleaner.seen)
}

func TestIdempotencyCleanupJobBadPayloadSkipsRetry(t *testing.T) {
	job := NewIdempotencyCleanupJob(&stubCleaner{}, discardLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupJobPropagatesErrors(t *testing.T) {
	task, err := NewIdempotencyCleanupTask(24)
	require.NoError(t, err)

	boom := errors.New("db down")
	job := NewIdempotencyCleanupJob(&stubCleaner{err: boom}, discardLogger(), nil)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}
