package posimport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veranda-erp/veranda-erp/internal/observability"
	"github.com/veranda-erp/veranda-erp/internal/shared"
)

// Enqueuer submits an accepted import run to the background queue.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, runID uuid.UUID) error
}

// ServiceConfig groups tunables for the import service.
type ServiceConfig struct {
	DefaultRolloverHour int
	UploadDir           string
}

// Service accepts import submissions over HTTP and executes them on the
// worker. Execution is guarded by the per-property lock: the day-index merge
// is not safe under concurrent writers to the same day.
type Service struct {
	repo     Repository
	pipeline *Pipeline
	lock     *shared.ImportLock
	idem     *shared.IdempotencyStore
	enqueue  Enqueuer
	metrics  *observability.Metrics
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService builds Service.
func NewService(repo Repository, pipeline *Pipeline, lock *shared.ImportLock, idem *shared.IdempotencyStore, enqueue Enqueuer, metrics *observability.Metrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	if cfg.DefaultRolloverHour < 0 || cfg.DefaultRolloverHour > 23 {
		cfg.DefaultRolloverHour = 4
	}
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		lock:     lock,
		idem:     idem,
		enqueue:  enqueue,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// SubmitInput carries one uploaded vendor export.
type SubmitInput struct {
	PropertyID int64
	Vendor     string
	Kind       ImportKind
	FileName   string
	File       io.Reader
}

// Submit stores the uploaded file, records a pending run and enqueues it.
// The same file content cannot be enqueued twice while a run for it is
// still in flight.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (ImportRun, error) {
	switch in.Kind {
	case KindHeaders, KindItems, KindDiscounts:
	default:
		return ImportRun{}, fmt.Errorf("posimport: unknown import kind %q", in.Kind)
	}
	if _, err := s.repo.GetProfile(ctx, in.PropertyID, in.Vendor); err != nil {
		return ImportRun{}, err
	}

	runID := uuid.New()
	path := filepath.Join(s.cfg.UploadDir, runID.String()+filepath.Ext(in.FileName))
	digest, err := s.saveUpload(path, in.File)
	if err != nil {
		return ImportRun{}, err
	}

	idemKey := fmt.Sprintf("%d:%s:%s", in.PropertyID, in.Kind, digest)
	if err := s.idem.CheckAndInsert(ctx, idemKey, "posimport"); err != nil {
		_ = os.Remove(path)
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return ImportRun{}, fmt.Errorf("posimport: identical file already queued: %w", err)
		}
		return ImportRun{}, err
	}

	run := ImportRun{
		ID:          runID,
		PropertyID:  in.PropertyID,
		Vendor:      in.Vendor,
		Kind:        in.Kind,
		FileName:    in.FileName,
		FilePath:    path,
		FileDigest:  digest,
		Status:      RunStatusPending,
		SubmittedAt: time.Now(),
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		_ = s.idem.Delete(ctx, idemKey)
		_ = os.Remove(path)
		return ImportRun{}, err
	}
	if err := s.enqueue.EnqueueImport(ctx, runID); err != nil {
		_ = s.idem.Delete(ctx, idemKey)
		return ImportRun{}, fmt.Errorf("posimport: enqueue run: %w", err)
	}
	return run, nil
}

func (s *Service) saveUpload(path string, src io.Reader) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("posimport: create upload dir: %w", err)
	}
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("posimport: store upload: %w", err)
	}
	defer dst.Close()
	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, hash), src); err != nil {
		return "", fmt.Errorf("posimport: store upload: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Execute runs one import job start to finish. It is called from the worker
// and may be retried: every stage merges or replaces deterministically, so a
// re-run converges to the same state.
func (s *Service) Execute(ctx context.Context, runID uuid.UUID) error {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status == RunStatusDone {
		return nil
	}

	token, err := s.lock.Acquire(ctx, run.PropertyID)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), run.PropertyID, token); err != nil {
			s.logger.Warn("release import lock", slog.Any("error", err))
		}
	}()

	if err := s.repo.MarkRunRunning(ctx, runID); err != nil {
		return err
	}
	started := time.Now()

	summary, runErr := s.execute(ctx, run)
	s.finish(ctx, run, summary, runErr, time.Since(started))
	return runErr
}

func (s *Service) execute(ctx context.Context, run ImportRun) (RunSummary, error) {
	profile, err := s.repo.GetProfile(ctx, run.PropertyID, run.Vendor)
	if err != nil {
		return RunSummary{}, err
	}
	file, err := NewRowReader(profile).ReadFile(run.FilePath)
	if err != nil {
		return RunSummary{}, err
	}

	progress := make(chan ProgressEvent, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress {
			if err := s.repo.UpdateRunProgress(context.WithoutCancel(ctx), run.ID, ev.Percent); err != nil {
				s.logger.Warn("update run progress", slog.Any("error", err))
			}
		}
	}()

	var summary RunSummary
	switch run.Kind {
	case KindHeaders:
		meta := ReceiptHeader{ImportBatchID: run.ID, ImportedAt: time.Now(), SourceFile: run.FileName}
		summary, err = s.pipeline.ImportHeaders(ctx, run.PropertyID, profile, s.cfg.DefaultRolloverHour, file, meta, progress)
	default:
		summary, err = s.pipeline.ImportItems(ctx, run.PropertyID, profile, run.Kind, file, progress)
	}
	close(progress)
	<-done
	return summary, err
}

func (s *Service) finish(ctx context.Context, run ImportRun, summary RunSummary, runErr error, took time.Duration) {
	ctx = context.WithoutCancel(ctx)
	kind := string(run.Kind)
	s.metrics.ObserveImportDuration(kind, took)
	s.metrics.ObserveImportRows(kind, "ok", summary.RowsRead-summary.RowsSkipped)
	s.metrics.ObserveImportRows(kind, "skipped", summary.RowsSkipped)
	s.metrics.ObserveImportRows(kind, "refund", summary.RefundLines)
	s.metrics.ObserveDedupEvents(summary.DedupEvents)
	s.metrics.ObserveUnmatchedReceipts(len(summary.NotFoundReceipts))

	status := RunStatusDone
	errMsg := ""
	if runErr != nil {
		status = RunStatusFailed
		errMsg = runErr.Error()
	}
	if err := s.repo.FinishRun(ctx, run.ID, status, summary, errMsg); err != nil {
		s.logger.Error("finish run", slog.Any("error", err))
	}

	if run.FileDigest != "" {
		key := fmt.Sprintf("%d:%s:%s", run.PropertyID, run.Kind, run.FileDigest)
		if err := s.idem.Delete(ctx, key); err != nil {
			s.logger.Warn("idempotency delete", slog.Any("error", err))
		}
	}

	s.logger.Info("import run finished",
		slog.String("run", run.ID.String()),
		slog.String("status", string(status)),
		slog.String("summary", summary.Message()),
		slog.Duration("took", took))
}

// GetRun returns the run record for status polling.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (ImportRun, error) {
	return s.repo.GetRun(ctx, id)
}

// DailySales reads the per-day product sales aggregate.
func (s *Service) DailySales(ctx context.Context, propertyID int64, day string) ([]DailyProductSales, error) {
	return s.repo.DailySales(ctx, propertyID, day)
}

// ItemSummary reads the per-day cross-receipt item summary.
func (s *Service) ItemSummary(ctx context.Context, propertyID int64, day string) ([]ReceiptItemSummary, error) {
	return s.repo.ItemSummary(ctx, propertyID, day)
}

// DayProductIndex reads the per-day product sub-index.
func (s *Service) DayProductIndex(ctx context.Context, propertyID int64, day string) ([]DayProductEntry, error) {
	return s.repo.DayProductIndex(ctx, propertyID, day)
}

// UpsertProfile stores a property-specific vendor profile.
func (s *Service) UpsertProfile(ctx context.Context, profile VendorProfile) (VendorProfile, error) {
	if err := profile.Validate(KindHeaders); err != nil {
		return VendorProfile{}, err
	}
	return s.repo.UpsertProfile(ctx, profile)
}

// Message renders the user-visible outcome line: completion counts plus any
// receipt ids that were never found in a day index.
func (s RunSummary) Message() string {
	msg := fmt.Sprintf("%d rows read, %d skipped, %d receipts across %d days",
		s.RowsRead, s.RowsSkipped, s.Receipts, len(s.DaysTouched))
	if s.DedupEvents > 0 {
		msg += fmt.Sprintf(", %d duplicate headers discarded", s.DedupEvents)
	}
	if len(s.OrphanVoids) > 0 {
		msg += fmt.Sprintf(", %d unmatched voids", len(s.OrphanVoids))
	}
	if len(s.NotFoundReceipts) > 0 {
		msg += "; receipts not found: " + strings.Join(s.NotFoundReceipts, ", ")
	}
	return msg
}
