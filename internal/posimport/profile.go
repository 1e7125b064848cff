package posimport

import (
	"fmt"
	"strings"
)

// Canonical field names resolved through a vendor profile's column map.
const (
	FieldReceiptNo   = "receipt_no"
	FieldCreatedBy   = "created_by"
	FieldCreatedAt   = "created_at"
	FieldFinalizedAt = "finalized_at"
	FieldOutlet      = "outlet"
	FieldUsername    = "username"
	FieldTerminalID  = "terminal_id"
	FieldProductID   = "product_id"
	FieldProductName = "product_name"
	FieldQuantity    = "quantity"
	FieldUnitPrice   = "unit_price"
	FieldLineTotal   = "line_total"
	FieldTaxPercent  = "tax_percent"
	FieldVoidFlag    = "void_flag"
	FieldReportCount = "report_count"
)

// FileFormat of the vendor export.
type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatXLSX FileFormat = "xlsx"
)

// VendorProfile describes how one point-of-sale vendor's export files map
// onto the canonical field set. Column maps are user-configurable per
// property; the built-in profiles act as defaults.
type VendorProfile struct {
	ID         int64      `json:"id"`
	PropertyID int64      `json:"property_id"`
	Vendor     string     `json:"vendor"`
	Format     FileFormat `json:"format"`
	Delimiter  string     `json:"delimiter"`

	// Columns maps canonical field name to the vendor's header caption.
	Columns map[string]string `json:"columns"`

	// TimeLayouts are tried in order for timestamps carrying a time of
	// day; DateLayouts for the date-only fallback.
	TimeLayouts []string `json:"time_layouts"`
	DateLayouts []string `json:"date_layouts"`

	// RolloverHour overrides the configured default when non-nil.
	RolloverHour *int `json:"rollover_hour,omitempty"`

	// DecimalComma marks exports using "1.234,56" number formatting.
	DecimalComma bool `json:"decimal_comma"`

	// SignedRefunds marks vendors that encode refunds as rows with a
	// negative quantity.
	SignedRefunds bool `json:"signed_refunds"`

	// VoidValues are the cell values of the void column that mark a row
	// as a void. An empty list means any non-empty cell counts.
	VoidValues []string `json:"void_values,omitempty"`
}

func defaultTimeLayouts() []string {
	return []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"02.01.2006 15:04:05",
		"02.01.2006 15:04",
		"2006-01-02 15:04",
	}
}

func defaultDateLayouts() []string {
	return []string{
		"2006-01-02",
		"02.01.2006",
	}
}

// BuiltinProfiles returns the vendor profiles shipped with the application.
// Property-specific rows in pos_vendor_profiles take precedence.
func BuiltinProfiles() []VendorProfile {
	return []VendorProfile{
		{
			Vendor:    "gastro",
			Format:    FormatCSV,
			Delimiter: ";",
			Columns: map[string]string{
				FieldReceiptNo:   "Beleg-Nr",
				FieldCreatedBy:   "Erstellt von",
				FieldCreatedAt:   "Erstellt am",
				FieldFinalizedAt: "Abgeschlossen am",
				FieldOutlet:      "Umsatzbereich",
				FieldUsername:    "Benutzer",
				FieldTerminalID:  "Terminal",
				FieldProductID:   "Artikel-Nr",
				FieldProductName: "Artikel",
				FieldQuantity:    "Menge",
				FieldUnitPrice:   "Einzelpreis",
				FieldLineTotal:   "Gesamt",
				FieldTaxPercent:  "MwSt %",
				FieldVoidFlag:    "Storno",
				FieldReportCount: "Berichtsanzahl",
			},
			TimeLayouts:   []string{"02.01.2006 15:04:05", "02.01.2006 15:04"},
			DateLayouts:   []string{"02.01.2006"},
			DecimalComma:  true,
			SignedRefunds: true,
			VoidValues:    []string{"1", "x", "storno", "true"},
		},
		{
			Vendor: "suite",
			Format: FormatXLSX,
			Columns: map[string]string{
				FieldReceiptNo:   "Check Number",
				FieldCreatedBy:   "Opened By",
				FieldCreatedAt:   "Open Time",
				FieldFinalizedAt: "Close Time",
				FieldOutlet:      "Revenue Center",
				FieldUsername:    "Employee",
				FieldTerminalID:  "Workstation",
				FieldProductID:   "Item Number",
				FieldProductName: "Item Name",
				FieldQuantity:    "Qty",
				FieldUnitPrice:   "Price",
				FieldLineTotal:   "Total",
				FieldTaxPercent:  "Tax Rate",
				FieldVoidFlag:    "Void",
			},
			TimeLayouts: defaultTimeLayouts(),
			DateLayouts: defaultDateLayouts(),
		},
	}
}

// Validate reports whether the profile can drive an import of the given
// kind: known format, and every required canonical field mapped to a column.
func (p VendorProfile) Validate(kind ImportKind) error {
	if p.Vendor == "" {
		return fmt.Errorf("posimport: profile vendor is empty")
	}
	if p.Format != FormatCSV && p.Format != FormatXLSX {
		return fmt.Errorf("posimport: profile %s: unknown format %q", p.Vendor, p.Format)
	}
	required := itemRequiredFields()
	if kind == KindHeaders {
		required = headerRequiredFields()
	}
	var missing []string
	for _, field := range required {
		if p.Columns[field] == "" {
			missing = append(missing, field)
		}
	}
	if kind == KindHeaders && p.Columns[FieldCreatedAt] == "" && p.Columns[FieldFinalizedAt] == "" {
		missing = append(missing, FieldCreatedAt)
	}
	if len(missing) > 0 {
		return fmt.Errorf("posimport: profile %s: unmapped fields %s: %w", p.Vendor, strings.Join(missing, ", "), ErrMissingColumns)
	}
	return nil
}

// headerFields lists the fields a header file must resolve; one of the two
// timestamps is enough for day resolution, so they are checked separately.
func headerRequiredFields() []string {
	return []string{FieldReceiptNo}
}

// itemRequiredFields lists the fields a line-item file must resolve.
func itemRequiredFields() []string {
	return []string{FieldReceiptNo, FieldProductID, FieldProductName, FieldQuantity}
}
