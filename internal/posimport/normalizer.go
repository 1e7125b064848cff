package posimport

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var headerFolder = cases.Fold()

// canonicalHeader reduces a vendor column caption to a comparable key.
// Vendor exports differ in casing, surrounding whitespace and unicode
// composition (umlauts arrive both precomposed and decomposed).
func canonicalHeader(s string) string {
	s = norm.NFKC.String(s)
	s = headerFolder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Normalizer maps vendor-specific columns of one file onto the canonical
// field set. It is built once per file from the header row.
type Normalizer struct {
	profile VendorProfile
	index   map[string]int
}

// NewNormalizer resolves the profile's column map against the file's header
// row. Required fields that cannot be resolved are a file-level fault.
func NewNormalizer(profile VendorProfile, header []string, kind ImportKind) (*Normalizer, error) {
	byCaption := make(map[string]int, len(header))
	for i, caption := range header {
		key := canonicalHeader(caption)
		if _, ok := byCaption[key]; !ok {
			byCaption[key] = i
		}
	}

	index := make(map[string]int, len(profile.Columns))
	for field, caption := range profile.Columns {
		if i, ok := byCaption[canonicalHeader(caption)]; ok {
			index[field] = i
		}
	}

	n := &Normalizer{profile: profile, index: index}

	var required []string
	switch kind {
	case KindHeaders:
		required = headerRequiredFields()
	default:
		required = itemRequiredFields()
	}
	var missing []string
	for _, field := range required {
		if _, ok := index[field]; !ok {
			missing = append(missing, field)
		}
	}
	if kind == KindHeaders {
		if _, ok := index[FieldCreatedAt]; !ok {
			if _, ok := index[FieldFinalizedAt]; !ok {
				missing = append(missing, FieldCreatedAt)
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return n, nil
}

// Field returns the trimmed cell value for a canonical field, or "" when the
// column is absent or the row is short.
func (n *Normalizer) Field(row []string, field string) string {
	i, ok := n.index[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Float parses a numeric cell. Non-numeric values coerce to zero rather than
// failing the row.
func (n *Normalizer) Float(row []string, field string) float64 {
	raw := n.Field(row, field)
	if raw == "" {
		return 0
	}
	if n.profile.DecimalComma {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	} else {
		raw = strings.ReplaceAll(raw, ",", "")
	}
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Bool interprets the void column. With configured VoidValues only those
// values count; otherwise any non-empty cell does.
func (n *Normalizer) Bool(row []string, field string) bool {
	raw := n.Field(row, field)
	if raw == "" {
		return false
	}
	if len(n.profile.VoidValues) == 0 {
		return true
	}
	folded := canonicalHeader(raw)
	for _, v := range n.profile.VoidValues {
		if folded == canonicalHeader(v) {
			return true
		}
	}
	return false
}

// HeaderRow extracts a receipt header from one row. The business day is
// resolved later by the caller.
func (n *Normalizer) HeaderRow(row []string) ReceiptHeader {
	return ReceiptHeader{
		ReceiptNo:    n.Field(row, FieldReceiptNo),
		CreatedBy:    n.Field(row, FieldCreatedBy),
		CreatedRaw:   n.Field(row, FieldCreatedAt),
		FinalizedRaw: n.Field(row, FieldFinalizedAt),
		Outlet:       n.Field(row, FieldOutlet),
		Username:     n.Field(row, FieldUsername),
		TerminalID:   n.Field(row, FieldTerminalID),
	}
}

// ItemRow extracts a normalized line-item row.
func (n *Normalizer) ItemRow(row []string) ItemRow {
	return ItemRow{
		ReceiptNo:   n.Field(row, FieldReceiptNo),
		ProductID:   n.Field(row, FieldProductID),
		Name:        n.Field(row, FieldProductName),
		Quantity:    n.Float(row, FieldQuantity),
		UnitPrice:   n.Float(row, FieldUnitPrice),
		LineTotal:   n.Float(row, FieldLineTotal),
		TaxPercent:  n.Float(row, FieldTaxPercent),
		Void:        n.Bool(row, FieldVoidFlag),
		ReportCount: n.Float(row, FieldReportCount),
	}
}
