package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/veranda-erp/veranda-erp/internal/jobs"
	"github.com/veranda-erp/veranda-erp/internal/posimport"
	"github.com/veranda-erp/veranda-erp/internal/shared"
)

// ImportExecutor runs one import start to finish.
type ImportExecutor interface {
	Execute(ctx context.Context, runID uuid.UUID) error
}

// POSImportJob adapts the import service to the Asynq handler contract.
type POSImportJob struct {
	executor ImportExecutor
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewPOSImportJob constructs the job handler.
func NewPOSImportJob(executor ImportExecutor, logger *slog.Logger, metrics *jobmetrics.Metrics) *POSImportJob {
	return &POSImportJob{executor: executor, logger: logger, metrics: metrics}
}

// Handle processes TaskPOSImport tasks. A run blocked by the per-property
// lock is retried later; an unknown run id is dropped without retry.
func (j *POSImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload POSImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(TaskPOSImport)
	err := j.executor.Execute(ctx, payload.RunID)
	switch {
	case err == nil:
		return tracker.End(nil)
	case errors.Is(err, shared.ErrImportRunning):
		j.logger.Info("import deferred, property busy", slog.String("run", payload.RunID.String()))
		j.metrics.AddDeferred(TaskPOSImport)
		return err
	case errors.Is(err, posimport.ErrRunNotFound):
		j.logger.Warn("import run vanished", slog.String("run", payload.RunID.String()))
		return asynq.SkipRetry
	default:
		j.logger.Error("import run failed", slog.String("run", payload.RunID.String()), slog.Any("error", err))
		return tracker.End(err)
	}
}
