package posimport

// UpsertProfileRequest is the payload for configuring a vendor profile.
type UpsertProfileRequest struct {
	PropertyID    int64             `json:"property_id" validate:"required"`
	Format        string            `json:"format" validate:"required,oneof=csv xlsx"`
	Delimiter     string            `json:"delimiter" validate:"max=1"`
	Columns       map[string]string `json:"columns" validate:"required,min=1"`
	TimeLayouts   []string          `json:"time_layouts"`
	DateLayouts   []string          `json:"date_layouts"`
	RolloverHour  *int              `json:"rollover_hour" validate:"omitempty,gte=0,lte=23"`
	DecimalComma  bool              `json:"decimal_comma"`
	SignedRefunds bool              `json:"signed_refunds"`
	VoidValues    []string          `json:"void_values"`
}

// RunResponse is the import-run view returned to API clients.
type RunResponse struct {
	Run     ImportRun `json:"run"`
	Message string    `json:"message,omitempty"`
}
