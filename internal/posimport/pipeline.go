package posimport

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/veranda-erp/veranda-erp/internal/catalog"
)

// CatalogPort resolves vendor product ids to category and tax rate.
type CatalogPort interface {
	Lookup(ctx context.Context, propertyID int64, vendorProductIDs []string) (map[string]catalog.ArticleInfo, error)
}

// ProgressEvent reports a monotonically increasing completion percentage.
type ProgressEvent struct {
	Percent int
	Stage   string
}

// dayRebuildSteps is the fixed number of progress steps charged per affected
// day: product index merge plus both aggregate rebuilds.
const dayRebuildSteps = 3

// maxParallelDays bounds concurrent per-day aggregate rebuilds. Days share
// no mutable state, so rebuilding them in parallel is safe.
const maxParallelDays = 4

// Pipeline drives the staged import: headers into day buckets first, then
// line items, index merges and wholesale per-day aggregate rebuilds. Row
// faults are skipped and counted; file faults abort the run.
type Pipeline struct {
	store   Store
	catalog CatalogPort
	logger  *slog.Logger
}

// NewPipeline constructs the orchestrator.
func NewPipeline(store Store, catalogPort CatalogPort, logger *slog.Logger) *Pipeline {
	return &Pipeline{store: store, catalog: catalogPort, logger: logger}
}

// ImportHeaders processes a receipt header export: normalize rows, resolve
// each receipt's business day, dedup within the pass (earlier day wins) and
// merge the result into the per-day receipt index.
func (p *Pipeline) ImportHeaders(ctx context.Context, propertyID int64, profile VendorProfile, defaultRollover int, file FileRows, meta ReceiptHeader, progress chan<- ProgressEvent) (RunSummary, error) {
	normalizer, err := NewNormalizer(profile, file.Header, KindHeaders)
	if err != nil {
		return RunSummary{}, err
	}
	resolver := NewDayResolver(profile, defaultRollover)

	summary := RunSummary{}
	groups := newHeaderGroups()
	for _, row := range file.Rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.RowsRead++
		h := normalizer.HeaderRow(row)
		if h.ReceiptNo == "" {
			summary.RowsSkipped++
			continue
		}
		day := resolver.Resolve(h.CreatedRaw, h.FinalizedRaw)
		if day == "" {
			summary.RowsSkipped++
			p.logger.Warn("header row without resolvable day",
				slog.String("receipt", h.ReceiptNo), slog.Int64("property", propertyID))
			continue
		}
		h.ImportBatchID = meta.ImportBatchID
		h.ImportedAt = meta.ImportedAt
		h.SourceFile = meta.SourceFile
		if !groups.add(day, h) {
			p.logger.Info("duplicate receipt kept on earlier day",
				slog.String("receipt", h.ReceiptNo), slog.String("day", day))
		}
	}
	summary.DedupEvents = groups.dedupEvents
	summary.Receipts = groups.size()
	summary.DaysTouched = groups.days()

	tracker := newProgressTracker(groups.size()+len(summary.DaysTouched), "headers", progress)
	for _, day := range summary.DaysTouched {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		receipts := groups.receipts(day)
		if err := p.store.UpsertReceipts(ctx, propertyID, receipts); err != nil {
			return summary, fmt.Errorf("posimport: merge day %s: %w", day, err)
		}
		tracker.step(len(receipts) + 1)
	}
	tracker.finish()
	return summary, nil
}

// ImportItems processes a line-item export: rows are reconciled per receipt
// in original file order, receipt line sets are replaced, the per-day
// product index is merged, and every affected day's aggregates are rebuilt
// wholesale. In discount mode rows are filtered by the report-count column
// and resulting lines tagged discount-only.
func (p *Pipeline) ImportItems(ctx context.Context, propertyID int64, profile VendorProfile, kind ImportKind, file FileRows, progress chan<- ProgressEvent) (RunSummary, error) {
	normalizer, err := NewNormalizer(profile, file.Header, kind)
	if err != nil {
		return RunSummary{}, err
	}
	discountOnly := kind == KindDiscounts

	summary := RunSummary{}
	byReceipt := make(map[string][]ItemRow)
	var receiptOrder []string
	for _, row := range file.Rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.RowsRead++
		item := normalizer.ItemRow(row)
		if item.ReceiptNo == "" || (item.ProductID == "" && item.Name == "") {
			summary.RowsSkipped++
			continue
		}
		if discountOnly && item.ReportCount == 0 {
			continue
		}
		if _, ok := byReceipt[item.ReceiptNo]; !ok {
			receiptOrder = append(receiptOrder, item.ReceiptNo)
		}
		byReceipt[item.ReceiptNo] = append(byReceipt[item.ReceiptNo], item)
	}

	days, err := p.store.DaysOfReceipts(ctx, propertyID, receiptOrder)
	if err != nil {
		return summary, fmt.Errorf("posimport: resolve receipt days: %w", err)
	}

	// days maps receipt to day, one entry per found receipt; rebuild steps
	// are charged per distinct day, so the total must count those.
	distinctDays := make(map[string]struct{}, len(days))
	for _, day := range days {
		distinctDays[day] = struct{}{}
	}

	tracker := newProgressTracker(len(receiptOrder)+dayRebuildSteps*len(distinctDays), "items", progress)
	dayProducts := make(map[string]map[string]DayProductEntry)
	for _, receiptNo := range receiptOrder {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		day, ok := days[receiptNo]
		if !ok {
			summary.NotFoundReceipts = append(summary.NotFoundReceipts, receiptNo)
			tracker.step(1)
			continue
		}
		lines, orphans, refundRows := ReconcileReceipt(receiptNo, byReceipt[receiptNo], ReconcileOptions{
			DiscountOnly:  discountOnly,
			SignedRefunds: profile.SignedRefunds,
		})
		summary.RefundLines += refundRows
		summary.OrphanVoids = append(summary.OrphanVoids, orphans...)
		if err := p.store.ReplaceReceiptLines(ctx, propertyID, receiptNo, discountOnly, lines); err != nil {
			return summary, fmt.Errorf("posimport: replace lines for %s: %w", receiptNo, err)
		}
		summary.Receipts++
		entries := dayProducts[day]
		if entries == nil {
			entries = make(map[string]DayProductEntry)
			dayProducts[day] = entries
		}
		dayProductEntries(lines, entries)
		tracker.step(1)
	}

	touched := make([]string, 0, len(dayProducts))
	for day := range dayProducts {
		touched = append(touched, day)
	}
	sort.Strings(touched)
	summary.DaysTouched = touched
	sort.Strings(summary.NotFoundReceipts)

	for _, day := range touched {
		entries := dayProducts[day]
		list := make([]DayProductEntry, 0, len(entries))
		for _, e := range entries {
			list = append(list, e)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ProductID < list[j].ProductID })
		if err := p.store.MergeDayProducts(ctx, propertyID, day, list); err != nil {
			return summary, fmt.Errorf("posimport: merge product index %s: %w", day, err)
		}
		tracker.step(1)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelDays)
	for _, day := range touched {
		day := day
		group.Go(func() error {
			if err := p.rebuildDay(groupCtx, propertyID, day); err != nil {
				return err
			}
			tracker.step(2)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return summary, err
	}
	tracker.finish()
	return summary, nil
}

// RebuildDays recomputes aggregates for an explicit day list, used by the
// re-run CLI path after out-of-band corrections.
func (p *Pipeline) RebuildDays(ctx context.Context, propertyID int64, days []string) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelDays)
	for _, day := range days {
		day := day
		group.Go(func() error {
			return p.rebuildDay(groupCtx, propertyID, day)
		})
	}
	return group.Wait()
}

func (p *Pipeline) rebuildDay(ctx context.Context, propertyID int64, day string) error {
	receipts, err := p.store.ReceiptsForDay(ctx, propertyID, day)
	if err != nil {
		return fmt.Errorf("posimport: load day %s: %w", day, err)
	}
	idSet := make(map[string]struct{})
	for _, receipt := range receipts {
		for _, line := range receipt.Lines {
			idSet[line.ProductID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	articles, err := p.catalog.Lookup(ctx, propertyID, ids)
	if err != nil {
		return fmt.Errorf("posimport: catalog lookup %s: %w", day, err)
	}
	aggs := BuildDayAggregates(day, receipts, articles)
	if err := p.store.ReplaceDayAggregates(ctx, propertyID, aggs); err != nil {
		return fmt.Errorf("posimport: replace aggregates %s: %w", day, err)
	}
	return nil
}
