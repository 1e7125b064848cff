package catalog

import "time"

// Article maps a point-of-sale vendor product id to the internal catalog.
type Article struct {
	ID              int64     `json:"id"`
	PropertyID      int64     `json:"property_id"`
	VendorProductID string    `json:"vendor_product_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	TaxRate         float64   `json:"tax_rate"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ArticleInfo is the projection the aggregation builder consumes.
type ArticleInfo struct {
	Category string
	TaxRate  float64
}
