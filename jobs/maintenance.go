package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/veranda-erp/veranda-erp/internal/jobs"
)

// TaskIdempotencyCleanup prunes stale idempotency keys left behind by
// crashed import runs.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// IdempotencyCleanupPayload bounds the cleanup window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the scheduled cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// IdempotencyCleaner removes keys older than the retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob runs the nightly key pruning.
type IdempotencyCleanupJob struct {
	cleaner IdempotencyCleaner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob constructs the job handler.
func NewIdempotencyCleanupJob(cleaner IdempotencyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{cleaner: cleaner, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 24
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour

	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	err := j.cleaner.Cleanup(ctx, retention)
	if err != nil {
		j.logger.Error("idempotency cleanup failed", slog.Any("error", err))
	} else {
		j.logger.Info("idempotency cleanup done", slog.Duration("retention", retention))
	}
	return tracker.End(err)
}
