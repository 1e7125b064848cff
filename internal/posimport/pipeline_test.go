package posimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veranda-erp/veranda-erp/internal/catalog"
)

type memoryStore struct {
	mu         sync.Mutex
	receipts   map[string]ReceiptHeader            // receipt_no -> header
	lines      map[string][]ReconciledLine         // receipt_no -> ordinary lines
	discounts  map[string][]ReconciledLine         // receipt_no -> discount-only lines
	dayIndex   map[string]map[string]DayProductEntry // day -> product index
	aggregates map[string]DayAggregates            // day -> replaced aggregates
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		receipts:   make(map[string]ReceiptHeader),
		lines:      make(map[string][]ReconciledLine),
		discounts:  make(map[string][]ReconciledLine),
		dayIndex:   make(map[string]map[string]DayProductEntry),
		aggregates: make(map[string]DayAggregates),
	}
}

func (s *memoryStore) UpsertReceipts(ctx context.Context, propertyID int64, headers []ReceiptHeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range headers {
		s.receipts[h.ReceiptNo] = h
	}
	return nil
}

func (s *memoryStore) DaysOfReceipts(ctx context.Context, propertyID int64, receiptNos []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]string)
	for _, no := range receiptNos {
		if h, ok := s.receipts[no]; ok {
			result[no] = h.Day
		}
	}
	return result, nil
}

func (s *memoryStore) ReplaceReceiptLines(ctx context.Context, propertyID int64, receiptNo string, discountOnly bool, lines []ReconciledLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if discountOnly {
		s.discounts[receiptNo] = lines
	} else {
		s.lines[receiptNo] = lines
	}
	return nil
}

func (s *memoryStore) MergeDayProducts(ctx context.Context, propertyID int64, day string, entries []DayProductEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.dayIndex[day]
	if index == nil {
		index = make(map[string]DayProductEntry)
		s.dayIndex[day] = index
	}
	for _, e := range entries {
		if _, ok := index[e.ProductID]; !ok {
			index[e.ProductID] = e
		}
	}
	return nil
}

func (s *memoryStore) ReceiptsForDay(ctx context.Context, propertyID int64, day string) ([]ReceiptWithLines, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ReceiptWithLines
	for no, h := range s.receipts {
		if h.Day != day {
			continue
		}
		lines := append(append([]ReconciledLine{}, s.lines[no]...), s.discounts[no]...)
		out = append(out, ReceiptWithLines{Header: h, Lines: lines})
	}
	return out, nil
}

func (s *memoryStore) ReplaceDayAggregates(ctx context.Context, propertyID int64, aggs DayAggregates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates[aggs.Day] = aggs
	return nil
}

type staticCatalog map[string]catalog.ArticleInfo

func (c staticCatalog) Lookup(ctx context.Context, propertyID int64, ids []string) (map[string]catalog.ArticleInfo, error) {
	result := make(map[string]catalog.ArticleInfo)
	for _, id := range ids {
		if info, ok := c[id]; ok {
			result[id] = info
		}
	}
	return result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func headerFile() FileRows {
	return FileRows{
		Header: []string{"Beleg-Nr", "Erstellt am", "Abgeschlossen am", "Umsatzbereich", "Benutzer"},
		Rows: [][]string{
			{"R1", "01.05.2024 21:00:00", "01.05.2024 22:15:00", "Bar", "anna"},
			{"R2", "02.05.2024 01:10:00", "02.05.2024 02:30:00", "Bar", "anna"},       // before rollover -> 2024-05-01
			{"R3", "02.05.2024 12:00:00", "02.05.2024 12:30:00", "Restaurant", "ben"}, // -> 2024-05-02
			{"R3", "02.05.2024 12:00:00", "03.05.2024 12:00:00", "Restaurant", "ben"}, // later duplicate, discarded
			{"", "02.05.2024 12:00:00", "", "", ""},         // missing receipt id, skipped
			{"R4", "not a date", "still not a date", "", ""}, // unresolvable day, skipped
		},
	}
}

func itemsFile() FileRows {
	return FileRows{
		Header: []string{"Beleg-Nr", "Artikel-Nr", "Artikel", "Menge", "Einzelpreis", "Gesamt", "MwSt %", "Storno"},
		Rows: [][]string{
			{"R1", "100", "Espresso", "3", "2,50", "7,50", "19", ""},
			{"R1", "100", "Espresso", "1", "2,50", "2,50", "19", "x"},
			{"R2", "200", "Club Sandwich", "1", "12,00", "12,00", "7", ""},
			{"R9", "100", "Espresso", "1", "2,50", "2,50", "19", ""}, // header never imported
		},
	}
}

func TestPipelineImportHeaders(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, staticCatalog{}, testLogger())

	progress := make(chan ProgressEvent, 64)
	summary, err := p.ImportHeaders(context.Background(), 1, gastroProfile(), 4, headerFile(), ReceiptHeader{SourceFile: "headers.csv"}, progress)
	require.NoError(t, err)
	close(progress)

	require.Equal(t, 6, summary.RowsRead)
	require.Equal(t, 2, summary.RowsSkipped)
	require.Equal(t, 3, summary.Receipts)
	require.Equal(t, 1, summary.DedupEvents)
	require.Equal(t, []string{"2024-05-01", "2024-05-02"}, summary.DaysTouched)

	require.Equal(t, "2024-05-01", store.receipts["R1"].Day)
	require.Equal(t, "2024-05-01", store.receipts["R2"].Day, "pre-rollover receipt belongs to the previous day")
	require.Equal(t, "2024-05-02", store.receipts["R3"].Day, "earlier day must win the duplicate")
	require.Equal(t, "headers.csv", store.receipts["R1"].SourceFile)

	last := -1
	for ev := range progress {
		require.Greater(t, ev.Percent, last, "progress must be strictly increasing")
		last = ev.Percent
	}
	require.Equal(t, 100, last)
}

func TestPipelineImportHeadersIdempotent(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, staticCatalog{}, testLogger())

	_, err := p.ImportHeaders(context.Background(), 1, gastroProfile(), 4, headerFile(), ReceiptHeader{}, nil)
	require.NoError(t, err)
	first := fmt.Sprintf("%+v", store.receipts)

	_, err = p.ImportHeaders(context.Background(), 1, gastroProfile(), 4, headerFile(), ReceiptHeader{}, nil)
	require.NoError(t, err)
	require.Equal(t, first, fmt.Sprintf("%+v", store.receipts))
}

func TestPipelineImportItems(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, staticCatalog{
		"100": {Category: "Beverages Hot", TaxRate: 19},
		"200": {Category: "Food", TaxRate: 7},
	}, testLogger())

	_, err := p.ImportHeaders(context.Background(), 1, gastroProfile(), 4, headerFile(), ReceiptHeader{}, nil)
	require.NoError(t, err)

	progress := make(chan ProgressEvent, 64)
	summary, err := p.ImportItems(context.Background(), 1, gastroProfile(), KindItems, itemsFile(), progress)
	require.NoError(t, err)
	close(progress)

	require.Equal(t, 4, summary.RowsRead)
	require.Equal(t, []string{"R9"}, summary.NotFoundReceipts)
	require.Equal(t, 2, summary.Receipts)
	require.Equal(t, []string{"2024-05-01"}, summary.DaysTouched)

	// The void netted one espresso off the receipt.
	require.Len(t, store.lines["R1"], 1)
	require.Equal(t, 2.0, store.lines["R1"][0].Quantity)
	require.Equal(t, 5.0, store.lines["R1"][0].Total)

	// Day product index carries first-seen entries of both receipts.
	index := store.dayIndex["2024-05-01"]
	require.Len(t, index, 2)
	require.Equal(t, "Espresso", index["100"].DisplayName)

	// Aggregates were rebuilt for the single affected day.
	aggs, ok := store.aggregates["2024-05-01"]
	require.True(t, ok)
	require.Len(t, aggs.Sales, 2)
	require.Equal(t, "Beverages Hot", aggs.Summary[0].Category)

	last := -1
	for ev := range progress {
		require.Greater(t, ev.Percent, last)
		last = ev.Percent
	}
	require.Equal(t, 100, last)
}

func TestPipelineImportItemsProgressScale(t *testing.T) {
	// Many receipts on a single day: the declared step total must count
	// rebuild steps per distinct day, not per receipt, or progress stalls
	// low and jumps straight to 100.
	store := newMemoryStore()
	p := NewPipeline(store, staticCatalog{}, testLogger())

	headers := FileRows{Header: []string{"Beleg-Nr", "Erstellt am", "Abgeschlossen am", "Umsatzbereich", "Benutzer"}}
	items := FileRows{Header: []string{"Beleg-Nr", "Artikel-Nr", "Artikel", "Menge", "Einzelpreis", "Gesamt", "MwSt %", "Storno"}}
	for i := 0; i < 20; i++ {
		no := fmt.Sprintf("B%02d", i)
		headers.Rows = append(headers.Rows, []string{no, "01.05.2024 12:00:00", "", "Bar", "anna"})
		items.Rows = append(items.Rows, []string{no, "100", "Espresso", "1", "2,50", "2,50", "19", ""})
	}
	_, err := p.ImportHeaders(context.Background(), 1, gastroProfile(), 4, headers, ReceiptHeader{}, nil)
	require.NoError(t, err)

	progress := make(chan ProgressEvent, 64)
	summary, err := p.ImportItems(context.Background(), 1, gastroProfile(), KindItems, items, progress)
	require.NoError(t, err)
	close(progress)
	require.Equal(t, []string{"2024-05-01"}, summary.DaysTouched)

	last, beforeFinal := -1, -1
	for ev := range progress {
		require.Greater(t, ev.Percent, last)
		if ev.Percent < 100 {
			beforeFinal = ev.Percent
		}
		last = ev.Percent
	}
	require.Equal(t, 100, last)
	require.GreaterOrEqual(t, beforeFinal, 80, "receipt steps alone must carry progress most of the way")
}

func TestPipelineImportItemsDiscountMode(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, staticCatalog{}, testLogger())

	_, err := p.ImportHeaders(context.Background(), 1, gastroProfile(), 4, headerFile(), ReceiptHeader{}, nil)
	require.NoError(t, err)

	file := FileRows{
		Header: []string{"Beleg-Nr", "Artikel-Nr", "Artikel", "Menge", "Einzelpreis", "Gesamt", "Berichtsanzahl"},
		Rows: [][]string{
			{"R1", "300", "Happy Hour Negroni", "2", "6,00", "12,00", "1"},
			{"R1", "100", "Espresso", "1", "2,50", "2,50", "0"}, // filtered out
		},
	}
	summary, err := p.ImportItems(context.Background(), 1, gastroProfile(), KindDiscounts, file, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Receipts)

	require.Empty(t, store.lines["R1"], "ordinary lines must stay untouched")
	require.Len(t, store.discounts["R1"], 1)
	require.True(t, store.discounts["R1"][0].DiscountOnly)
}

func TestPipelineImportItemsMissingColumnsAborts(t *testing.T) {
	p := NewPipeline(newMemoryStore(), staticCatalog{}, testLogger())
	file := FileRows{Header: []string{"Beleg-Nr"}, Rows: [][]string{{"R1"}}}
	_, err := p.ImportItems(context.Background(), 1, gastroProfile(), KindItems, file, nil)
	require.ErrorIs(t, err, ErrMissingColumns)
}

func TestPipelineRebuildDays(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, staticCatalog{}, testLogger())

	_, err := p.ImportHeaders(context.Background(), 1, gastroProfile(), 4, headerFile(), ReceiptHeader{}, nil)
	require.NoError(t, err)
	_, err = p.ImportItems(context.Background(), 1, gastroProfile(), KindItems, itemsFile(), nil)
	require.NoError(t, err)

	delete(store.aggregates, "2024-05-01")
	require.NoError(t, p.RebuildDays(context.Background(), 1, []string{"2024-05-01"}))
	require.Contains(t, store.aggregates, "2024-05-01")
}
