package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	articles map[string]Article
	lookups  [][]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{articles: make(map[string]Article)}
}

func (r *memoryRepo) List(ctx context.Context, propertyID int64, search string, limit, offset int) ([]Article, int, error) {
	var out []Article
	for _, a := range r.articles {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, propertyID int64, vendorProductID string) (Article, error) {
	a, ok := r.articles[vendorProductID]
	if !ok {
		return Article{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryRepo) Upsert(ctx context.Context, article Article) (Article, error) {
	r.articles[article.VendorProductID] = article
	return article, nil
}

func (r *memoryRepo) LookupMany(ctx context.Context, propertyID int64, vendorProductIDs []string) (map[string]ArticleInfo, error) {
	r.lookups = append(r.lookups, vendorProductIDs)
	result := make(map[string]ArticleInfo)
	for _, id := range vendorProductIDs {
		if a, ok := r.articles[id]; ok {
			result[id] = ArticleInfo{Category: a.Category, TaxRate: a.TaxRate}
		}
	}
	return result, nil
}

func TestUpsertValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Upsert(context.Background(), Article{VendorProductID: "  "})
	require.Error(t, err)

	_, err = svc.Upsert(context.Background(), Article{VendorProductID: "100", TaxRate: 150})
	require.Error(t, err)

	a, err := svc.Upsert(context.Background(), Article{VendorProductID: " 100 ", Name: "Espresso", TaxRate: 19})
	require.NoError(t, err)
	require.Equal(t, "100", a.VendorProductID)
}

func TestLookupDeduplicates(t *testing.T) {
	repo := newMemoryRepo()
	repo.articles["100"] = Article{VendorProductID: "100", Category: "Beverages Hot", TaxRate: 19}
	svc := NewService(repo)

	result, err := svc.Lookup(context.Background(), 1, []string{"100", " 100", "", "999"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, 19.0, result["100"].TaxRate)

	require.Len(t, repo.lookups, 1)
	require.Equal(t, []string{"100", "999"}, repo.lookups[0])
}

func TestGetRequiresID(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Get(context.Background(), 1, "   ")
	require.Error(t, err)
}
