package posimport

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ImportKind selects which vendor export file an import run processes.
type ImportKind string

const (
	// KindHeaders imports the receipt header file.
	KindHeaders ImportKind = "headers"
	// KindItems imports the receipt line-item file.
	KindItems ImportKind = "items"
	// KindDiscounts imports the line-item file in discount-items mode:
	// rows are filtered by the report-count column and resulting lines
	// are tagged discount-only.
	KindDiscounts ImportKind = "discounts"
)

// RunStatus tracks the lifecycle of an import run.
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
)

var (
	// ErrRunNotFound indicates the import run id is unknown.
	ErrRunNotFound = errors.New("posimport: run not found")
	// ErrProfileNotFound indicates no vendor profile matches.
	ErrProfileNotFound = errors.New("posimport: vendor profile not found")
	// ErrFileUnreadable is a file-level fault; the run aborts.
	ErrFileUnreadable = errors.New("posimport: file unreadable")
	// ErrMissingColumns is a file-level fault: a required vendor column
	// could not be resolved from the header row.
	ErrMissingColumns = errors.New("posimport: required columns missing")
)

// ReceiptHeader is one imported receipt header, owned by exactly one
// business day at a time.
type ReceiptHeader struct {
	ReceiptNo     string    `json:"receipt_no"`
	Day           string    `json:"day"`
	CreatedBy     string    `json:"created_by"`
	CreatedRaw    string    `json:"created_raw"`
	FinalizedRaw  string    `json:"finalized_raw"`
	Outlet        string    `json:"outlet"`
	Username      string    `json:"username"`
	TerminalID    string    `json:"terminal_id"`
	ImportBatchID uuid.UUID `json:"import_batch_id"`
	ImportedAt    time.Time `json:"imported_at"`
	SourceFile    string    `json:"source_file"`
}

// ItemRow is one normalized line-item row in file order.
type ItemRow struct {
	ReceiptNo   string
	ProductID   string
	Name        string
	Quantity    float64
	UnitPrice   float64
	LineTotal   float64
	TaxPercent  float64
	Void        bool
	ReportCount float64
}

// ReconciledLine is the net, post-void representation of a product within
// one receipt. Quantity and Total are negative only on refund lines, which
// carry the sign through to persistence for sign-aware aggregation.
type ReconciledLine struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Total        float64 `json:"total"`
	UnitPrice    float64 `json:"unit_price"`
	TaxPercent   float64 `json:"tax_percent"`
	IsRefund     bool    `json:"is_refund"`
	DiscountOnly bool    `json:"discount_only"`
}

// OrphanVoid is a pending void request that never found a matching product
// row within its receipt. Orphans are surfaced in the run summary and
// discarded; they are never persisted across runs.
type OrphanVoid struct {
	ReceiptNo string  `json:"receipt_no"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
}

// DayProductEntry is one entry of the per-day product sub-index.
// First write wins per product id; refund lines never contribute.
type DayProductEntry struct {
	ProductID   string  `json:"product_id"`
	DisplayName string  `json:"display_name"`
	UnitPrice   float64 `json:"unit_price"`
}

// ReceiptWithLines joins a stored header with its reconciled lines,
// as read back for aggregate rebuilds.
type ReceiptWithLines struct {
	Header ReceiptHeader
	Lines  []ReconciledLine
}

// DailyProductSales is the per-day, per-product sales aggregate.
// Fully derived; rebuilt wholesale per day.
type DailyProductSales struct {
	ProductID    string             `json:"product_id"`
	Quantity     float64            `json:"quantity"`
	RevenueExcl  float64            `json:"revenue_excl_tax"`
	PerOutletQty map[string]float64 `json:"per_outlet_quantity"`
}

// ReceiptItemSummary is the per-day cross-receipt item aggregate.
// Fully derived; rebuilt wholesale per day.
type ReceiptItemSummary struct {
	ProductID     string             `json:"product_id"`
	DisplayName   string             `json:"display_name"`
	Category      string             `json:"category"`
	TaxPercent    float64            `json:"tax_percent"`
	Quantity      float64            `json:"quantity"`
	TotalIncl     float64            `json:"total_incl_tax"`
	TotalExcl     float64            `json:"total_excl_tax"`
	UnitPriceExcl float64            `json:"unit_price_excl_tax"`
	PerOutletQty  map[string]float64 `json:"per_outlet_quantity"`
}

// DayAggregates bundles both derived documents for one business day.
type DayAggregates struct {
	Day     string
	Sales   []DailyProductSales
	Summary []ReceiptItemSummary
}

// ImportRun records one import job over one uploaded file.
type ImportRun struct {
	ID          uuid.UUID  `json:"id"`
	PropertyID  int64      `json:"property_id"`
	Vendor      string     `json:"vendor"`
	Kind        ImportKind `json:"kind"`
	FileName    string     `json:"file_name"`
	FilePath    string     `json:"-"`
	FileDigest  string     `json:"-"`
	Status      RunStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Summary     RunSummary `json:"summary"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// RunSummary is the user-visible outcome of an import run.
type RunSummary struct {
	RowsRead         int          `json:"rows_read"`
	RowsSkipped      int          `json:"rows_skipped"`
	Receipts         int          `json:"receipts"`
	DedupEvents      int          `json:"dedup_events"`
	RefundLines      int          `json:"refund_lines"`
	DaysTouched      []string     `json:"days_touched"`
	NotFoundReceipts []string     `json:"not_found_receipts,omitempty"`
	OrphanVoids      []OrphanVoid `json:"orphan_voids,omitempty"`
}
