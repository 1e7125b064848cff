package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Service coordinates catalog lookups and maintenance.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of articles for the property.
func (s *Service) List(ctx context.Context, propertyID int64, search string, limit, offset int) ([]Article, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, propertyID, search, limit, offset)
}

// Get fetches a single article by its vendor product id.
func (s *Service) Get(ctx context.Context, propertyID int64, vendorProductID string) (Article, error) {
	vendorProductID = strings.TrimSpace(vendorProductID)
	if vendorProductID == "" {
		return Article{}, fmt.Errorf("catalog: vendor product id required")
	}
	return s.repo.Get(ctx, propertyID, vendorProductID)
}

// Upsert creates or replaces an article mapping.
func (s *Service) Upsert(ctx context.Context, article Article) (Article, error) {
	article.VendorProductID = strings.TrimSpace(article.VendorProductID)
	if article.VendorProductID == "" {
		return Article{}, fmt.Errorf("catalog: vendor product id required")
	}
	if article.TaxRate < 0 || article.TaxRate > 100 {
		return Article{}, fmt.Errorf("catalog: tax rate out of range: %v", article.TaxRate)
	}
	return s.repo.Upsert(ctx, article)
}

// Lookup resolves category and tax rate for a set of vendor product ids.
// Unknown ids are simply absent from the result; the aggregation builder
// treats them as untaxed and uncategorised.
func (s *Service) Lookup(ctx context.Context, propertyID int64, vendorProductIDs []string) (map[string]ArticleInfo, error) {
	unique := make([]string, 0, len(vendorProductIDs))
	seen := make(map[string]struct{}, len(vendorProductIDs))
	for _, id := range vendorProductIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return s.repo.LookupMany(ctx, propertyID, unique)
}
