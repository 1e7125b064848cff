package posimport

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence surface the pipeline writes through. Header and
// index writes merge into existing state; aggregate writes replace the whole
// day. The combination keeps a re-run of the same file convergent.
type Store interface {
	// UpsertReceipts merges headers into their day buckets. A receipt id
	// already stored under another day migrates: it is owned by exactly
	// one day at a time.
	UpsertReceipts(ctx context.Context, propertyID int64, headers []ReceiptHeader) error

	// DaysOfReceipts resolves receipt ids to their assigned business day.
	// Unknown ids are absent from the result.
	DaysOfReceipts(ctx context.Context, propertyID int64, receiptNos []string) (map[string]string, error)

	// ReplaceReceiptLines swaps the reconciled line set of one receipt.
	// Ordinary and discount-only line sets are replaced independently.
	ReplaceReceiptLines(ctx context.Context, propertyID int64, receiptNo string, discountOnly bool, lines []ReconciledLine) error

	// MergeDayProducts merges entries into the day's product sub-index,
	// first write wins per product id.
	MergeDayProducts(ctx context.Context, propertyID int64, day string, entries []DayProductEntry) error

	// ReceiptsForDay loads the day's receipts with their reconciled lines.
	ReceiptsForDay(ctx context.Context, propertyID int64, day string) ([]ReceiptWithLines, error)

	// ReplaceDayAggregates replaces both derived documents for the day in
	// one transaction.
	ReplaceDayAggregates(ctx context.Context, propertyID int64, aggs DayAggregates) error
}

// Repository extends Store with import-run bookkeeping, vendor profiles and
// the read side consumed by reporting endpoints.
type Repository interface {
	Store

	DayReceiptMap(ctx context.Context, propertyID int64, day string) (map[string]int64, error)
	DayProductIndex(ctx context.Context, propertyID int64, day string) ([]DayProductEntry, error)
	DailySales(ctx context.Context, propertyID int64, day string) ([]DailyProductSales, error)
	ItemSummary(ctx context.Context, propertyID int64, day string) ([]ReceiptItemSummary, error)

	CreateRun(ctx context.Context, run ImportRun) error
	GetRun(ctx context.Context, id uuid.UUID) (ImportRun, error)
	MarkRunRunning(ctx context.Context, id uuid.UUID) error
	UpdateRunProgress(ctx context.Context, id uuid.UUID, progress int) error
	FinishRun(ctx context.Context, id uuid.UUID, status RunStatus, summary RunSummary, errMsg string) error

	GetProfile(ctx context.Context, propertyID int64, vendor string) (VendorProfile, error)
	UpsertProfile(ctx context.Context, profile VendorProfile) (VendorProfile, error)
}
