package posimport

import (
	"sort"

	"github.com/veranda-erp/veranda-erp/internal/catalog"
)

// BuildDayAggregates recomputes both per-day aggregates from scratch for one
// business day. The result only depends on the day's receipt set, so
// rebuilding twice from the same receipts is byte-identical; callers replace
// the stored aggregates wholesale, never patch them.
func BuildDayAggregates(day string, receipts []ReceiptWithLines, articles map[string]catalog.ArticleInfo) DayAggregates {
	sales := make(map[string]*DailyProductSales)
	summary := make(map[string]*ReceiptItemSummary)

	for _, receipt := range receipts {
		outlet := receipt.Header.Outlet
		for _, line := range receipt.Lines {
			info, known := articles[line.ProductID]
			taxRate := line.TaxPercent
			if known {
				taxRate = info.TaxRate
			}
			excl := line.Total / (1 + taxRate/100)

			if !line.IsRefund {
				s := sales[line.ProductID]
				if s == nil {
					s = &DailyProductSales{ProductID: line.ProductID, PerOutletQty: make(map[string]float64)}
					sales[line.ProductID] = s
				}
				s.Quantity = round6(s.Quantity + line.Quantity)
				s.RevenueExcl = round6(s.RevenueExcl + excl)
				s.PerOutletQty[outlet] = round6(s.PerOutletQty[outlet] + line.Quantity)
			}

			// The item summary is sign-aware: refund lines reduce its
			// totals through their negative quantity and total.
			sum := summary[line.ProductID]
			if sum == nil {
				sum = &ReceiptItemSummary{
					ProductID:    line.ProductID,
					DisplayName:  line.Name,
					Category:     info.Category,
					TaxPercent:   taxRate,
					PerOutletQty: make(map[string]float64),
				}
				summary[line.ProductID] = sum
			}
			sum.Quantity = round6(sum.Quantity + line.Quantity)
			sum.TotalIncl = round6(sum.TotalIncl + line.Total)
			sum.TotalExcl = round6(sum.TotalExcl + excl)
			sum.PerOutletQty[outlet] = round6(sum.PerOutletQty[outlet] + line.Quantity)
		}
	}

	aggs := DayAggregates{Day: day}
	for _, s := range sales {
		aggs.Sales = append(aggs.Sales, *s)
	}
	for _, sum := range summary {
		if sum.Quantity != 0 {
			sum.UnitPriceExcl = round6(sum.TotalExcl / sum.Quantity)
		}
		aggs.Summary = append(aggs.Summary, *sum)
	}
	sort.Slice(aggs.Sales, func(i, j int) bool { return aggs.Sales[i].ProductID < aggs.Sales[j].ProductID })
	sort.Slice(aggs.Summary, func(i, j int) bool { return aggs.Summary[i].ProductID < aggs.Summary[j].ProductID })
	return aggs
}

// dayProductEntries derives the per-day product sub-index contribution from
// freshly reconciled lines: first-seen name and unit price per product id,
// skipping refund lines so their keys never overwrite the index.
func dayProductEntries(lines []ReconciledLine, into map[string]DayProductEntry) {
	for _, line := range lines {
		if line.IsRefund {
			continue
		}
		if _, ok := into[line.ProductID]; ok {
			continue
		}
		into[line.ProductID] = DayProductEntry{
			ProductID:   line.ProductID,
			DisplayName: line.Name,
			UnitPrice:   line.UnitPrice,
		}
	}
}
