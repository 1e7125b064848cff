package posimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veranda-erp/veranda-erp/internal/platform/db"
)

// pgRepository persists import state in PostgreSQL. Day buckets are keyed
// tables with a secondary index per (property, day), not documents holding
// embedded maps, so merges are row-level upserts.
type pgRepository struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewRepository constructs the PostgreSQL-backed repository. batchSize caps
// the number of statements per flushed pgx batch.
func NewRepository(pool *pgxpool.Pool, batchSize int) Repository {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &pgRepository{pool: pool, batchSize: batchSize}
}

func (r *pgRepository) UpsertReceipts(ctx context.Context, propertyID int64, headers []ReceiptHeader) error {
	const query = `
INSERT INTO pos_receipts (property_id, receipt_no, day, created_by, created_raw, finalized_raw, outlet, username, terminal_id, import_batch_id, imported_at, source_file)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (property_id, receipt_no)
DO UPDATE SET day = EXCLUDED.day, created_by = EXCLUDED.created_by, created_raw = EXCLUDED.created_raw,
	finalized_raw = EXCLUDED.finalized_raw, outlet = EXCLUDED.outlet, username = EXCLUDED.username,
	terminal_id = EXCLUDED.terminal_id, import_batch_id = EXCLUDED.import_batch_id,
	imported_at = EXCLUDED.imported_at, source_file = EXCLUDED.source_file`
	return r.inChunks(ctx, len(headers), func(batch *pgx.Batch, i int) {
		h := headers[i]
		batch.Queue(query, propertyID, h.ReceiptNo, h.Day, h.CreatedBy, h.CreatedRaw, h.FinalizedRaw,
			h.Outlet, h.Username, h.TerminalID, h.ImportBatchID, h.ImportedAt, h.SourceFile)
	})
}

func (r *pgRepository) DaysOfReceipts(ctx context.Context, propertyID int64, receiptNos []string) (map[string]string, error) {
	result := make(map[string]string, len(receiptNos))
	if len(receiptNos) == 0 {
		return result, nil
	}
	const query = `SELECT receipt_no, day FROM pos_receipts WHERE property_id = $1 AND receipt_no = ANY($2)`
	rows, err := r.pool.Query(ctx, query, propertyID, receiptNos)
	if err != nil {
		return nil, fmt.Errorf("posimport: days of receipts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var no, day string
		if err := rows.Scan(&no, &day); err != nil {
			return nil, err
		}
		result[no] = day
	}
	return result, rows.Err()
}

func (r *pgRepository) ReplaceReceiptLines(ctx context.Context, propertyID int64, receiptNo string, discountOnly bool, lines []ReconciledLine) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM pos_receipt_lines WHERE property_id = $1 AND receipt_no = $2 AND discount_only = $3`,
			propertyID, receiptNo, discountOnly); err != nil {
			return fmt.Errorf("posimport: delete receipt lines: %w", err)
		}
		const insert = `
INSERT INTO pos_receipt_lines (property_id, receipt_no, position, product_id, name, quantity, total, unit_price, tax_percent, is_refund, discount_only)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
		batch := &pgx.Batch{}
		for i, line := range lines {
			batch.Queue(insert, propertyID, receiptNo, i, line.ProductID, line.Name,
				line.Quantity, line.Total, line.UnitPrice, line.TaxPercent, line.IsRefund, line.DiscountOnly)
		}
		return flushBatch(ctx, tx, batch)
	})
}

func (r *pgRepository) MergeDayProducts(ctx context.Context, propertyID int64, day string, entries []DayProductEntry) error {
	const query = `
INSERT INTO pos_day_products (property_id, day, product_id, display_name, unit_price)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (property_id, day, product_id) DO NOTHING`
	return r.inChunks(ctx, len(entries), func(batch *pgx.Batch, i int) {
		e := entries[i]
		batch.Queue(query, propertyID, day, e.ProductID, e.DisplayName, e.UnitPrice)
	})
}

func (r *pgRepository) ReceiptsForDay(ctx context.Context, propertyID int64, day string) ([]ReceiptWithLines, error) {
	const headerQuery = `
SELECT receipt_no, day, created_by, created_raw, finalized_raw, outlet, username, terminal_id, import_batch_id, imported_at, source_file
FROM pos_receipts WHERE property_id = $1 AND day = $2 ORDER BY receipt_no`
	rows, err := r.pool.Query(ctx, headerQuery, propertyID, day)
	if err != nil {
		return nil, fmt.Errorf("posimport: receipts for day: %w", err)
	}
	defer rows.Close()

	var receipts []ReceiptWithLines
	index := make(map[string]int)
	for rows.Next() {
		var h ReceiptHeader
		if err := rows.Scan(&h.ReceiptNo, &h.Day, &h.CreatedBy, &h.CreatedRaw, &h.FinalizedRaw,
			&h.Outlet, &h.Username, &h.TerminalID, &h.ImportBatchID, &h.ImportedAt, &h.SourceFile); err != nil {
			return nil, err
		}
		index[h.ReceiptNo] = len(receipts)
		receipts = append(receipts, ReceiptWithLines{Header: h})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const lineQuery = `
SELECT l.receipt_no, l.product_id, l.name, l.quantity, l.total, l.unit_price, l.tax_percent, l.is_refund, l.discount_only
FROM pos_receipt_lines l
JOIN pos_receipts r ON r.property_id = l.property_id AND r.receipt_no = l.receipt_no
WHERE l.property_id = $1 AND r.day = $2
ORDER BY l.receipt_no, l.position`
	lineRows, err := r.pool.Query(ctx, lineQuery, propertyID, day)
	if err != nil {
		return nil, fmt.Errorf("posimport: lines for day: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var no string
		var line ReconciledLine
		if err := lineRows.Scan(&no, &line.ProductID, &line.Name, &line.Quantity, &line.Total,
			&line.UnitPrice, &line.TaxPercent, &line.IsRefund, &line.DiscountOnly); err != nil {
			return nil, err
		}
		if i, ok := index[no]; ok {
			receipts[i].Lines = append(receipts[i].Lines, line)
		}
	}
	return receipts, lineRows.Err()
}

func (r *pgRepository) ReplaceDayAggregates(ctx context.Context, propertyID int64, aggs DayAggregates) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM pos_daily_product_sales WHERE property_id = $1 AND day = $2`, propertyID, aggs.Day); err != nil {
			return fmt.Errorf("posimport: clear daily sales: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM pos_receipt_item_summary WHERE property_id = $1 AND day = $2`, propertyID, aggs.Day); err != nil {
			return fmt.Errorf("posimport: clear item summary: %w", err)
		}
		batch := &pgx.Batch{}
		for _, s := range aggs.Sales {
			outlets, err := json.Marshal(s.PerOutletQty)
			if err != nil {
				return err
			}
			batch.Queue(`
INSERT INTO pos_daily_product_sales (property_id, day, product_id, quantity, revenue_excl, per_outlet)
VALUES ($1, $2, $3, $4, $5, $6)`, propertyID, aggs.Day, s.ProductID, s.Quantity, s.RevenueExcl, outlets)
		}
		for _, s := range aggs.Summary {
			outlets, err := json.Marshal(s.PerOutletQty)
			if err != nil {
				return err
			}
			batch.Queue(`
INSERT INTO pos_receipt_item_summary (property_id, day, product_id, display_name, category, tax_percent, quantity, total_incl, total_excl, unit_price_excl, per_outlet)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				propertyID, aggs.Day, s.ProductID, s.DisplayName, s.Category, s.TaxPercent,
				s.Quantity, s.TotalIncl, s.TotalExcl, s.UnitPriceExcl, outlets)
		}
		return flushBatch(ctx, tx, batch)
	})
}

func (r *pgRepository) DayReceiptMap(ctx context.Context, propertyID int64, day string) (map[string]int64, error) {
	const query = `SELECT receipt_no, id FROM pos_receipts WHERE property_id = $1 AND day = $2`
	rows, err := r.pool.Query(ctx, query, propertyID, day)
	if err != nil {
		return nil, fmt.Errorf("posimport: day receipt map: %w", err)
	}
	defer rows.Close()
	result := make(map[string]int64)
	for rows.Next() {
		var no string
		var id int64
		if err := rows.Scan(&no, &id); err != nil {
			return nil, err
		}
		result[no] = id
	}
	return result, rows.Err()
}

func (r *pgRepository) DayProductIndex(ctx context.Context, propertyID int64, day string) ([]DayProductEntry, error) {
	const query = `SELECT product_id, display_name, unit_price FROM pos_day_products WHERE property_id = $1 AND day = $2 ORDER BY product_id`
	rows, err := r.pool.Query(ctx, query, propertyID, day)
	if err != nil {
		return nil, fmt.Errorf("posimport: day product index: %w", err)
	}
	defer rows.Close()
	var entries []DayProductEntry
	for rows.Next() {
		var e DayProductEntry
		if err := rows.Scan(&e.ProductID, &e.DisplayName, &e.UnitPrice); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *pgRepository) DailySales(ctx context.Context, propertyID int64, day string) ([]DailyProductSales, error) {
	const query = `SELECT product_id, quantity, revenue_excl, per_outlet FROM pos_daily_product_sales WHERE property_id = $1 AND day = $2 ORDER BY product_id`
	rows, err := r.pool.Query(ctx, query, propertyID, day)
	if err != nil {
		return nil, fmt.Errorf("posimport: daily sales: %w", err)
	}
	defer rows.Close()
	var sales []DailyProductSales
	for rows.Next() {
		var s DailyProductSales
		var outlets []byte
		if err := rows.Scan(&s.ProductID, &s.Quantity, &s.RevenueExcl, &outlets); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(outlets, &s.PerOutletQty); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (r *pgRepository) ItemSummary(ctx context.Context, propertyID int64, day string) ([]ReceiptItemSummary, error) {
	const query = `
SELECT product_id, display_name, category, tax_percent, quantity, total_incl, total_excl, unit_price_excl, per_outlet
FROM pos_receipt_item_summary WHERE property_id = $1 AND day = $2 ORDER BY product_id`
	rows, err := r.pool.Query(ctx, query, propertyID, day)
	if err != nil {
		return nil, fmt.Errorf("posimport: item summary: %w", err)
	}
	defer rows.Close()
	var summary []ReceiptItemSummary
	for rows.Next() {
		var s ReceiptItemSummary
		var outlets []byte
		if err := rows.Scan(&s.ProductID, &s.DisplayName, &s.Category, &s.TaxPercent,
			&s.Quantity, &s.TotalIncl, &s.TotalExcl, &s.UnitPriceExcl, &outlets); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(outlets, &s.PerOutletQty); err != nil {
			return nil, err
		}
		summary = append(summary, s)
	}
	return summary, rows.Err()
}

func (r *pgRepository) CreateRun(ctx context.Context, run ImportRun) error {
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO pos_import_runs (id, property_id, vendor, kind, file_name, file_path, file_digest, status, progress, summary, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.PropertyID, run.Vendor, run.Kind, run.FileName, run.FilePath, run.FileDigest,
		run.Status, run.Progress, summary, run.SubmittedAt)
	if err != nil {
		return fmt.Errorf("posimport: create run: %w", err)
	}
	return nil
}

func (r *pgRepository) GetRun(ctx context.Context, id uuid.UUID) (ImportRun, error) {
	const query = `
SELECT id, property_id, vendor, kind, file_name, file_path, file_digest, status, progress, summary, COALESCE(error, ''), started_at, finished_at, submitted_at
FROM pos_import_runs WHERE id = $1`
	var run ImportRun
	var summary []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&run.ID, &run.PropertyID, &run.Vendor, &run.Kind,
		&run.FileName, &run.FilePath, &run.FileDigest, &run.Status, &run.Progress, &summary, &run.Error,
		&run.StartedAt, &run.FinishedAt, &run.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ImportRun{}, ErrRunNotFound
		}
		return ImportRun{}, err
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &run.Summary); err != nil {
			return ImportRun{}, err
		}
	}
	return run, nil
}

func (r *pgRepository) MarkRunRunning(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE pos_import_runs SET status = $2, started_at = $3 WHERE id = $1`,
		id, RunStatusRunning, time.Now())
	return err
}

func (r *pgRepository) UpdateRunProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE pos_import_runs SET progress = GREATEST(progress, $2) WHERE id = $1`,
		id, progress)
	return err
}

func (r *pgRepository) FinishRun(ctx context.Context, id uuid.UUID, status RunStatus, summary RunSummary, errMsg string) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	progress := 100
	if status != RunStatusDone {
		progress = 0
	}
	_, err = r.pool.Exec(ctx, `
UPDATE pos_import_runs SET status = $2, summary = $3, error = NULLIF($4, ''), finished_at = $5, progress = GREATEST(progress, $6)
WHERE id = $1`, id, status, data, errMsg, time.Now(), progress)
	return err
}

func (r *pgRepository) GetProfile(ctx context.Context, propertyID int64, vendor string) (VendorProfile, error) {
	const query = `
SELECT id, property_id, vendor, format, delimiter, decimal_comma, signed_refunds, rollover_hour, columns, time_layouts, date_layouts, void_values
FROM pos_vendor_profiles WHERE property_id = $1 AND vendor = $2`
	var p VendorProfile
	var columns, timeLayouts, dateLayouts, voidValues []byte
	err := r.pool.QueryRow(ctx, query, propertyID, vendor).Scan(&p.ID, &p.PropertyID, &p.Vendor,
		&p.Format, &p.Delimiter, &p.DecimalComma, &p.SignedRefunds, &p.RolloverHour,
		&columns, &timeLayouts, &dateLayouts, &voidValues)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			for _, builtin := range BuiltinProfiles() {
				if builtin.Vendor == vendor {
					builtin.PropertyID = propertyID
					return builtin, nil
				}
			}
			return VendorProfile{}, ErrProfileNotFound
		}
		return VendorProfile{}, err
	}
	if err := json.Unmarshal(columns, &p.Columns); err != nil {
		return VendorProfile{}, err
	}
	for _, pair := range []struct {
		data []byte
		into *[]string
	}{{timeLayouts, &p.TimeLayouts}, {dateLayouts, &p.DateLayouts}, {voidValues, &p.VoidValues}} {
		if len(pair.data) > 0 {
			if err := json.Unmarshal(pair.data, pair.into); err != nil {
				return VendorProfile{}, err
			}
		}
	}
	return p, nil
}

func (r *pgRepository) UpsertProfile(ctx context.Context, profile VendorProfile) (VendorProfile, error) {
	columns, err := json.Marshal(profile.Columns)
	if err != nil {
		return VendorProfile{}, err
	}
	timeLayouts, err := json.Marshal(profile.TimeLayouts)
	if err != nil {
		return VendorProfile{}, err
	}
	dateLayouts, err := json.Marshal(profile.DateLayouts)
	if err != nil {
		return VendorProfile{}, err
	}
	voidValues, err := json.Marshal(profile.VoidValues)
	if err != nil {
		return VendorProfile{}, err
	}
	const query = `
INSERT INTO pos_vendor_profiles (property_id, vendor, format, delimiter, decimal_comma, signed_refunds, rollover_hour, columns, time_layouts, date_layouts, void_values)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (property_id, vendor)
DO UPDATE SET format = EXCLUDED.format, delimiter = EXCLUDED.delimiter, decimal_comma = EXCLUDED.decimal_comma,
	signed_refunds = EXCLUDED.signed_refunds, rollover_hour = EXCLUDED.rollover_hour, columns = EXCLUDED.columns,
	time_layouts = EXCLUDED.time_layouts, date_layouts = EXCLUDED.date_layouts, void_values = EXCLUDED.void_values
RETURNING id`
	err = r.pool.QueryRow(ctx, query, profile.PropertyID, profile.Vendor, profile.Format, profile.Delimiter,
		profile.DecimalComma, profile.SignedRefunds, profile.RolloverHour,
		columns, timeLayouts, dateLayouts, voidValues).Scan(&profile.ID)
	if err != nil {
		return VendorProfile{}, fmt.Errorf("posimport: upsert profile: %w", err)
	}
	return profile, nil
}

// inChunks queues n statements and flushes them in batches of batchSize.
func (r *pgRepository) inChunks(ctx context.Context, n int, queue func(*pgx.Batch, int)) error {
	for start := 0; start < n; start += r.batchSize {
		end := start + r.batchSize
		if end > n {
			end = n
		}
		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			queue(batch, i)
		}
		results := r.pool.SendBatch(ctx, batch)
		if err := results.Close(); err != nil {
			return fmt.Errorf("posimport: flush batch: %w", err)
		}
	}
	return nil
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func flushBatch(ctx context.Context, sender batchSender, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := sender.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		return fmt.Errorf("posimport: flush batch: %w", err)
	}
	return nil
}
