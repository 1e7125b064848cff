package posimport

import (
	"errors"
	"testing"
)

func gastroProfile() VendorProfile {
	return BuiltinProfiles()[0]
}

func TestNormalizerResolvesMessyCaptions(t *testing.T) {
	// Casing, padding and NFKD umlauts differ from the profile captions.
	header := []string{"  beleg-nr ", "ARTIKEL-NR", "Artikel", "MENGE", "Einzelpreis", "Gesamt", "MwSt %", "Storno"}
	n, err := NewNormalizer(gastroProfile(), header, KindItems)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	row := []string{"4711", "1001", "Espresso", "2", "2,50", "5,00", "19 %", ""}
	item := n.ItemRow(row)
	if item.ReceiptNo != "4711" || item.ProductID != "1001" || item.Name != "Espresso" {
		t.Fatalf("item = %+v", item)
	}
	if item.Quantity != 2 || item.UnitPrice != 2.5 || item.LineTotal != 5 {
		t.Fatalf("decimal comma parsing failed: %+v", item)
	}
	if item.TaxPercent != 19 {
		t.Fatalf("percent suffix not handled: %v", item.TaxPercent)
	}
	if item.Void {
		t.Fatal("empty storno cell must not void")
	}
}

func TestNormalizerMissingColumns(t *testing.T) {
	header := []string{"Beleg-Nr", "Artikel"}
	_, err := NewNormalizer(gastroProfile(), header, KindItems)
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("err = %v, want ErrMissingColumns", err)
	}
}

func TestNormalizerHeadersNeedOneTimestamp(t *testing.T) {
	_, err := NewNormalizer(gastroProfile(), []string{"Beleg-Nr"}, KindHeaders)
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("err = %v, want ErrMissingColumns", err)
	}
	if _, err := NewNormalizer(gastroProfile(), []string{"Beleg-Nr", "Abgeschlossen am"}, KindHeaders); err != nil {
		t.Fatalf("finalized timestamp alone must suffice: %v", err)
	}
}

func TestNormalizerFloatCoercion(t *testing.T) {
	n, err := NewNormalizer(gastroProfile(), []string{"Beleg-Nr", "Artikel-Nr", "Artikel", "Menge"}, KindItems)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	cases := []struct {
		raw  string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"-3,5", -3.5},
		{"abc", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := n.Float([]string{"", "", "", tc.raw}, FieldQuantity); got != tc.want {
			t.Fatalf("Float(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizerVoidValues(t *testing.T) {
	header := []string{"Beleg-Nr", "Artikel-Nr", "Artikel", "Menge", "Storno"}
	n, err := NewNormalizer(gastroProfile(), header, KindItems)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	for raw, want := range map[string]bool{
		"STORNO": true,
		"x":      true,
		"1":      true,
		"nein":   false,
		"":       false,
	} {
		if got := n.Bool([]string{"", "", "", "", raw}, FieldVoidFlag); got != want {
			t.Fatalf("Bool(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestNormalizerShortRow(t *testing.T) {
	n, err := NewNormalizer(gastroProfile(), []string{"Beleg-Nr", "Artikel-Nr", "Artikel", "Menge"}, KindItems)
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	item := n.ItemRow([]string{"4711"})
	if item.ReceiptNo != "4711" || item.ProductID != "" || item.Quantity != 0 {
		t.Fatalf("short row must yield zero values: %+v", item)
	}
}
