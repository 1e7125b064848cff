package posimport

import "sort"

// headerGroups buckets receipt headers by business day within a single
// import pass. The same receipt id may surface with different computed days
// across rows of one file; the earlier calendar day wins, independent of
// row order.
type headerGroups struct {
	byDay map[string]map[string]ReceiptHeader
	dayOf map[string]string

	dedupEvents int
}

func newHeaderGroups() *headerGroups {
	return &headerGroups{
		byDay: make(map[string]map[string]ReceiptHeader),
		dayOf: make(map[string]string),
	}
}

// add files a header under its resolved day. When the receipt id was already
// assigned a later day in this pass, the entry migrates to the earlier day;
// when the new day is later or equal, the new row is discarded and counted
// as a dedup event. Returns true when the header was stored or migrated.
func (g *headerGroups) add(day string, h ReceiptHeader) bool {
	prev, seen := g.dayOf[h.ReceiptNo]
	if seen {
		// Days are YYYY-MM-DD strings, so lexical order is calendar order.
		if day >= prev {
			g.dedupEvents++
			return false
		}
		delete(g.byDay[prev], h.ReceiptNo)
		if len(g.byDay[prev]) == 0 {
			delete(g.byDay, prev)
		}
	}
	h.Day = day
	bucket := g.byDay[day]
	if bucket == nil {
		bucket = make(map[string]ReceiptHeader)
		g.byDay[day] = bucket
	}
	bucket[h.ReceiptNo] = h
	g.dayOf[h.ReceiptNo] = day
	return true
}

// days returns the touched days in ascending order.
func (g *headerGroups) days() []string {
	days := make([]string, 0, len(g.byDay))
	for day := range g.byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// receipts returns the headers of one day sorted by receipt id for
// deterministic persistence order.
func (g *headerGroups) receipts(day string) []ReceiptHeader {
	bucket := g.byDay[day]
	receipts := make([]ReceiptHeader, 0, len(bucket))
	for _, h := range bucket {
		receipts = append(receipts, h)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].ReceiptNo < receipts[j].ReceiptNo })
	return receipts
}

// size is the number of distinct receipts across all days.
func (g *headerGroups) size() int {
	return len(g.dayOf)
}
