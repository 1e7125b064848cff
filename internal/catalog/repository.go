package catalog

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the article is missing.
var ErrNotFound = errors.New("catalog: article not found")

// Repository provides persistence for catalog articles.
type Repository interface {
	List(ctx context.Context, propertyID int64, search string, limit, offset int) ([]Article, int, error)
	Get(ctx context.Context, propertyID int64, vendorProductID string) (Article, error)
	Upsert(ctx context.Context, article Article) (Article, error)
	LookupMany(ctx context.Context, propertyID int64, vendorProductIDs []string) (map[string]ArticleInfo, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a catalog repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, propertyID int64, search string, limit, offset int) ([]Article, int, error) {
	query := `SELECT id, property_id, vendor_product_id, name, category, tax_rate, created_at, updated_at
FROM catalog_articles WHERE property_id = $1`
	args := []interface{}{propertyID}
	argCount := 1

	if search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR vendor_product_id ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM catalog_articles WHERE property_id = $1`
	countArgs := []interface{}{propertyID}
	if search != "" {
		countQuery += ` AND (name ILIKE $2 OR vendor_product_id ILIKE $2)`
		countArgs = append(countArgs, "%"+search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.PropertyID, &a.VendorProductID, &a.Name, &a.Category, &a.TaxRate, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		articles = append(articles, a)
	}
	return articles, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, propertyID int64, vendorProductID string) (Article, error) {
	const query = `SELECT id, property_id, vendor_product_id, name, category, tax_rate, created_at, updated_at
FROM catalog_articles WHERE property_id = $1 AND vendor_product_id = $2`
	var a Article
	err := r.pool.QueryRow(ctx, query, propertyID, vendorProductID).
		Scan(&a.ID, &a.PropertyID, &a.VendorProductID, &a.Name, &a.Category, &a.TaxRate, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, ErrNotFound
		}
		return Article{}, err
	}
	return a, nil
}

func (r *repository) Upsert(ctx context.Context, article Article) (Article, error) {
	const query = `
INSERT INTO catalog_articles (property_id, vendor_product_id, name, category, tax_rate, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (property_id, vendor_product_id)
DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category, tax_rate = EXCLUDED.tax_rate, updated_at = NOW()
RETURNING id, property_id, vendor_product_id, name, category, tax_rate, created_at, updated_at`
	var a Article
	err := r.pool.QueryRow(ctx, query, article.PropertyID, article.VendorProductID, article.Name, article.Category, article.TaxRate).
		Scan(&a.ID, &a.PropertyID, &a.VendorProductID, &a.Name, &a.Category, &a.TaxRate, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Article{}, err
	}
	return a, nil
}

func (r *repository) LookupMany(ctx context.Context, propertyID int64, vendorProductIDs []string) (map[string]ArticleInfo, error) {
	result := make(map[string]ArticleInfo, len(vendorProductIDs))
	if len(vendorProductIDs) == 0 {
		return result, nil
	}
	const query = `SELECT vendor_product_id, category, tax_rate
FROM catalog_articles WHERE property_id = $1 AND vendor_product_id = ANY($2)`
	rows, err := r.pool.Query(ctx, query, propertyID, vendorProductIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var info ArticleInfo
		if err := rows.Scan(&id, &info.Category, &info.TaxRate); err != nil {
			return nil, err
		}
		result[id] = info
	}
	return result, rows.Err()
}
