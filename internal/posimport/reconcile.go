package posimport

import (
	"math"
	"sort"
)

// qtyEpsilon guards float comparisons on accumulated quantities.
const qtyEpsilon = 1e-9

// round6 suppresses floating-point drift by rounding running totals to six
// fractional digits after every accumulation step.
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// productKey identifies one accumulated line within a receipt. Refund rows
// (negative quantity) get their own key so they never merge with, and are
// never netted against, ordinary sales of the same product.
type productKey struct {
	ProductID string
	Name      string
	Refund    bool
}

// pendingVoid is one queued void request awaiting a matching product row.
// UnitPrice is only meaningful when HasPrice is set; otherwise the price
// recorded on the accumulated line is used at application time.
type pendingVoid struct {
	Quantity  float64
	UnitPrice float64
	HasPrice  bool
}

// reconcileState accumulates the rows of a single receipt. It is scoped to
// one invocation and passed by reference through the algorithm, so receipts
// can be reconciled concurrently without shared state.
type reconcileState struct {
	lines   map[productKey]*ReconciledLine
	order   []productKey
	pending map[productKey][]pendingVoid

	opts       ReconcileOptions
	refundRows int
}

// ReconcileOptions carries the vendor-variant switches that change how raw
// rows are interpreted.
type ReconcileOptions struct {
	// DiscountOnly tags every resulting line as a discount line.
	DiscountOnly bool
	// SignedRefunds routes negative-quantity rows onto separate refund
	// lines. Vendors without it treat negative quantities as ordinary
	// corrections that net into the sales line.
	SignedRefunds bool
}

func newReconcileState(opts ReconcileOptions) *reconcileState {
	return &reconcileState{
		lines:   make(map[productKey]*ReconciledLine),
		pending: make(map[productKey][]pendingVoid),
		opts:    opts,
	}
}

// ReconcileReceipt nets the raw rows of one receipt, in original file order,
// into per-product reconciled lines. Voids consume previously (or later)
// accumulated quantity FIFO; refunds stay on their own lines. Any void
// quantity left unmatched at the end is returned as orphans.
func ReconcileReceipt(receiptNo string, rows []ItemRow, opts ReconcileOptions) ([]ReconciledLine, []OrphanVoid, int) {
	st := newReconcileState(opts)
	for _, row := range rows {
		st.consume(row)
	}
	return st.finalize(receiptNo)
}

func (st *reconcileState) consume(row ItemRow) {
	switch {
	case row.Void:
		st.consumeVoid(row)
	case row.Quantity < 0 && st.opts.SignedRefunds:
		st.consumeRefund(row)
	default:
		st.consumeSale(row)
	}
}

// consumeVoid enqueues a void request for the product key and immediately
// tries to apply it. The queue is kept even after a successful match because
// the void may outlive its match when quantities only partially overlap.
func (st *reconcileState) consumeVoid(row ItemRow) {
	key := productKey{ProductID: row.ProductID, Name: row.Name}
	qty := math.Abs(row.Quantity)
	if qty < qtyEpsilon {
		return
	}
	v := pendingVoid{Quantity: qty}
	if total := math.Abs(row.LineTotal); total > 0 && qty > 0 {
		perUnit := total / qty
		if !math.IsNaN(perUnit) && !math.IsInf(perUnit, 0) {
			v.UnitPrice = perUnit
			v.HasPrice = true
		}
	}
	if !v.HasPrice && row.UnitPrice != 0 {
		v.UnitPrice = math.Abs(row.UnitPrice)
		v.HasPrice = true
	}
	st.pending[key] = append(st.pending[key], v)
	st.applyPending(key)
}

// consumeRefund accumulates a negative-quantity row on its own refund key.
func (st *reconcileState) consumeRefund(row ItemRow) {
	key := productKey{ProductID: row.ProductID, Name: row.Name, Refund: true}
	line := st.line(key, row)
	line.Quantity = round6(line.Quantity + row.Quantity)
	total := row.LineTotal
	if total == 0 {
		total = row.Quantity * row.UnitPrice
	}
	line.Total = round6(line.Total + total)
	st.refundRows++
}

// consumeSale accumulates an ordinary row and applies any voids already
// queued for the product, covering files where a void physically precedes
// its target row.
func (st *reconcileState) consumeSale(row ItemRow) {
	key := productKey{ProductID: row.ProductID, Name: row.Name}
	perUnit := row.UnitPrice
	if perUnit == 0 && row.Quantity > 0 {
		perUnit = row.LineTotal / row.Quantity
		if math.IsNaN(perUnit) || math.IsInf(perUnit, 0) {
			perUnit = 0
		}
	}
	total := row.LineTotal
	if total == 0 {
		total = row.Quantity * perUnit
	}

	line := st.line(key, row)
	line.Quantity = round6(line.Quantity + row.Quantity)
	line.Total = round6(line.Total + total)
	if perUnit != 0 {
		line.UnitPrice = perUnit
	}
	st.applyPending(key)
}

// applyPending consumes queued void requests against the accumulated line in
// FIFO order. Partially satisfied requests stay queued with their remaining
// quantity. A line fully consumed by netting is removed entirely, never kept
// at zero.
func (st *reconcileState) applyPending(key productKey) {
	line, ok := st.lines[key]
	if !ok {
		return
	}
	queue := st.pending[key]
	for len(queue) > 0 && line.Quantity > qtyEpsilon {
		v := &queue[0]
		consumed := math.Min(v.Quantity, line.Quantity)
		perUnit := line.UnitPrice
		if v.HasPrice {
			perUnit = v.UnitPrice
		}
		line.Quantity = round6(line.Quantity - consumed)
		line.Total = round6(line.Total - perUnit*consumed)
		if line.Total < 0 {
			// Floating-point guard: never let netting drive a sales
			// line's total below zero.
			line.Total = 0
		}
		v.Quantity = round6(v.Quantity - consumed)
		if v.Quantity <= qtyEpsilon {
			queue = queue[1:]
		}
	}
	if line.Quantity <= qtyEpsilon {
		delete(st.lines, key)
	}
	if len(queue) == 0 {
		delete(st.pending, key)
	} else {
		st.pending[key] = queue
	}
}

func (st *reconcileState) line(key productKey, row ItemRow) *ReconciledLine {
	if line, ok := st.lines[key]; ok {
		return line
	}
	line := &ReconciledLine{
		ProductID:    row.ProductID,
		Name:         row.Name,
		UnitPrice:    math.Abs(row.UnitPrice),
		TaxPercent:   row.TaxPercent,
		IsRefund:     key.Refund,
		DiscountOnly: st.opts.DiscountOnly,
	}
	st.lines[key] = line
	st.order = append(st.order, key)
	return line
}

// finalize drops non-refund lines whose net quantity ended up zero or
// negative and reports any void quantity that never found a match.
func (st *reconcileState) finalize(receiptNo string) ([]ReconciledLine, []OrphanVoid, int) {
	var out []ReconciledLine
	// A key can appear in order twice when a fully-voided line is deleted
	// and the product sells again later on the same receipt; emit it once.
	seen := make(map[productKey]bool, len(st.order))
	for _, key := range st.order {
		if seen[key] {
			continue
		}
		seen[key] = true
		line, ok := st.lines[key]
		if !ok {
			continue
		}
		if !line.IsRefund && line.Quantity <= qtyEpsilon {
			continue
		}
		out = append(out, *line)
	}
	var orphans []OrphanVoid
	pendingKeys := make([]productKey, 0, len(st.pending))
	for key := range st.pending {
		pendingKeys = append(pendingKeys, key)
	}
	sort.Slice(pendingKeys, func(i, j int) bool {
		if pendingKeys[i].ProductID != pendingKeys[j].ProductID {
			return pendingKeys[i].ProductID < pendingKeys[j].ProductID
		}
		return pendingKeys[i].Name < pendingKeys[j].Name
	})
	for _, key := range pendingKeys {
		for _, v := range st.pending[key] {
			if v.Quantity <= qtyEpsilon {
				continue
			}
			orphans = append(orphans, OrphanVoid{
				ReceiptNo: receiptNo,
				ProductID: key.ProductID,
				Name:      key.Name,
				Quantity:  v.Quantity,
			})
		}
	}
	return out, orphans, st.refundRows
}
