package posimport

import (
	"math"
	"testing"
)

func TestReconcileVoidNetsQuantityAndTotal(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 5, UnitPrice: 5, LineTotal: 25},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 2, UnitPrice: 5, LineTotal: 10, Void: true},
	}
	lines, orphans, refunds := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(orphans) != 0 || refunds != 0 {
		t.Fatalf("unexpected orphans %v / refunds %d", orphans, refunds)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Quantity != 3 || lines[0].Total != 15 {
		t.Fatalf("got qty %v total %v, want 3 / 15", lines[0].Quantity, lines[0].Total)
	}
}

func TestReconcileVoidBeforeMatch(t *testing.T) {
	// The void physically precedes its target row; it must still net.
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5, Void: true},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5},
	}
	lines, orphans, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(lines) != 0 {
		t.Fatalf("fully voided line must disappear, got %v", lines)
	}
	if len(orphans) != 0 {
		t.Fatalf("matched void must not be orphaned, got %v", orphans)
	}
}

func TestReconcileVoidSpansMultipleSaleRows(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 3, UnitPrice: 5, LineTotal: 15, Void: true},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 2, UnitPrice: 5, LineTotal: 10},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 2, UnitPrice: 5, LineTotal: 10},
	}
	lines, orphans, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(orphans) != 0 {
		t.Fatalf("void should be fully consumed across rows, got %v", orphans)
	}
	if len(lines) != 1 || lines[0].Quantity != 1 || lines[0].Total != 5 {
		t.Fatalf("want residual qty 1 total 5, got %+v", lines)
	}
}

func TestReconcileRefundsStayIsolated(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 2, UnitPrice: 5, LineTotal: 10},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: -1, UnitPrice: 5, LineTotal: -5},
	}
	lines, _, refunds := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if refunds != 1 {
		t.Fatalf("refund rows = %d, want 1", refunds)
	}
	if len(lines) != 2 {
		t.Fatalf("refund must not merge with the sale line: %+v", lines)
	}
	var sale, refund *ReconciledLine
	for i := range lines {
		if lines[i].IsRefund {
			refund = &lines[i]
		} else {
			sale = &lines[i]
		}
	}
	if sale == nil || refund == nil {
		t.Fatalf("expected one sale and one refund line: %+v", lines)
	}
	if sale.Quantity != 2 || sale.Total != 10 {
		t.Fatalf("sale line altered by refund: %+v", sale)
	}
	if refund.Quantity != -1 || refund.Total != -5 {
		t.Fatalf("refund line wrong: %+v", refund)
	}
}

func TestReconcileVoidNeverTouchesRefunds(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: -2, UnitPrice: 5, LineTotal: -10},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 2, UnitPrice: 5, LineTotal: 10, Void: true},
	}
	lines, orphans, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(lines) != 1 || !lines[0].IsRefund || lines[0].Quantity != -2 {
		t.Fatalf("refund line must survive untouched: %+v", lines)
	}
	if len(orphans) != 1 || orphans[0].Quantity != 2 {
		t.Fatalf("void with only a refund present must orphan: %+v", orphans)
	}
}

func TestReconcileOrphanVoidReported(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R7", ProductID: "200", Name: "Salad", Quantity: 1, UnitPrice: 9, LineTotal: 9, Void: true},
	}
	lines, orphans, _ := ReconcileReceipt("R7", rows, ReconcileOptions{SignedRefunds: true})
	if len(lines) != 0 {
		t.Fatalf("nothing to net, got lines %+v", lines)
	}
	if len(orphans) != 1 || orphans[0].ReceiptNo != "R7" || orphans[0].ProductID != "200" {
		t.Fatalf("orphans = %+v", orphans)
	}
}

func TestReconcilePartialVoidStaysQueued(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 3, UnitPrice: 5, LineTotal: 15, Void: true},
	}
	_, orphans, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(orphans) != 1 || orphans[0].Quantity != 2 {
		t.Fatalf("remaining void quantity must be orphaned: %+v", orphans)
	}
}

func TestReconcileClampsTotalAtZero(t *testing.T) {
	// Void priced higher than the sale must not drive the total negative.
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 2, UnitPrice: 5, LineTotal: 10},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 20, LineTotal: 20, Void: true},
	}
	lines, _, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(lines) != 1 {
		t.Fatalf("expected residual line, got %+v", lines)
	}
	if lines[0].Quantity != 1 || lines[0].Total != 0 {
		t.Fatalf("want qty 1 total 0, got %+v", lines[0])
	}
}

func TestReconcileRoundsAccumulation(t *testing.T) {
	rows := make([]ItemRow, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, ItemRow{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 0.1, UnitPrice: 0.1, LineTotal: 0.01})
	}
	lines, _, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(lines) != 1 {
		t.Fatalf("expected one accumulated line, got %+v", lines)
	}
	if math.Abs(lines[0].Quantity-1.0) > qtyEpsilon {
		t.Fatalf("accumulated quantity drifted: %v", lines[0].Quantity)
	}
	if math.Abs(lines[0].Total-0.1) > qtyEpsilon {
		t.Fatalf("accumulated total drifted: %v", lines[0].Total)
	}
}

func TestReconcileDiscountOnlyTagging(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5, ReportCount: 1},
	}
	lines, _, _ := ReconcileReceipt("R1", rows, ReconcileOptions{DiscountOnly: true, SignedRefunds: true})
	if len(lines) != 1 || !lines[0].DiscountOnly {
		t.Fatalf("discount mode must tag lines: %+v", lines)
	}
}

func TestReconcileDistinctNamesStaySeparate(t *testing.T) {
	// Same product id with different captions must not merge, and a void
	// only nets against the matching caption.
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso Doppio", Quantity: 1, UnitPrice: 7, LineTotal: 7},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso Doppio", Quantity: 1, UnitPrice: 7, LineTotal: 7, Void: true},
	}
	lines, orphans, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(orphans) != 0 {
		t.Fatalf("void should match its caption: %+v", orphans)
	}
	if len(lines) != 1 || lines[0].Name != "Espresso" {
		t.Fatalf("only the plain espresso should remain: %+v", lines)
	}
}

func TestReconcileResaleAfterFullVoidEmitsOnce(t *testing.T) {
	// The first sale is fully voided away, then the product sells again.
	// The surviving line must appear exactly once with only the re-sale.
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5, Void: true},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 2, UnitPrice: 5, LineTotal: 10},
	}
	lines, orphans, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(orphans) != 0 {
		t.Fatalf("void fully matched, got orphans %+v", orphans)
	}
	if len(lines) != 1 {
		t.Fatalf("want one line after resale, got %d: %+v", len(lines), lines)
	}
	if lines[0].Quantity != 2 || lines[0].Total != 10 {
		t.Fatalf("want qty 2 total 10, got %+v", lines[0])
	}
}

func TestReconcileOrphansSortedByProduct(t *testing.T) {
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "300", Name: "Wine", Quantity: 1, UnitPrice: 8, LineTotal: 8, Void: true},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 1, UnitPrice: 5, LineTotal: 5, Void: true},
		{ReceiptNo: "R1", ProductID: "200", Name: "Salad", Quantity: 1, UnitPrice: 9, LineTotal: 9, Void: true},
	}
	_, orphans, _ := ReconcileReceipt("R1", rows, ReconcileOptions{SignedRefunds: true})
	if len(orphans) != 3 {
		t.Fatalf("want 3 orphans, got %+v", orphans)
	}
	for i, want := range []string{"100", "200", "300"} {
		if orphans[i].ProductID != want {
			t.Fatalf("orphans not sorted by product: %+v", orphans)
		}
	}
}

func TestReconcileUnsignedVendorNetsNegativeRows(t *testing.T) {
	// Without signed refunds a negative quantity is an ordinary
	// correction, not a refund line of its own.
	rows := []ItemRow{
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: 3, UnitPrice: 5, LineTotal: 15},
		{ReceiptNo: "R1", ProductID: "100", Name: "Espresso", Quantity: -1, UnitPrice: 5, LineTotal: -5},
	}
	lines, _, refunds := ReconcileReceipt("R1", rows, ReconcileOptions{})
	if refunds != 0 {
		t.Fatalf("refund rows = %d, want 0", refunds)
	}
	if len(lines) != 1 || lines[0].IsRefund {
		t.Fatalf("want one sales line, got %+v", lines)
	}
	if lines[0].Quantity != 2 || lines[0].Total != 10 {
		t.Fatalf("want netted qty 2 total 10, got %+v", lines[0])
	}
}
