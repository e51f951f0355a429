package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hieudev/pricewatch/internal/models"
)

// InsertProduct creates a new tracked product. The caller supplies the
// instance id; inserting a taken id fails with ErrDuplicate.
func (db *DB) InsertProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (instance_id, product_id, name, url, website, scraper_type, category, brand)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := db.pool.QueryRow(ctx, query,
		p.InstanceID, p.ProductID, p.Name, p.URL, p.Website, p.ScraperType,
		nullable(p.Category), nullable(p.Brand),
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}

// UpdateProduct replaces the full record identified by p.InstanceID.
func (db *DB) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET
			product_id = $2,
			name = $3,
			url = $4,
			website = $5,
			scraper_type = $6,
			category = $7,
			brand = $8,
			updated_at = now()
		WHERE instance_id = $1
		RETURNING created_at, updated_at`

	err := db.pool.QueryRow(ctx, query,
		p.InstanceID, p.ProductID, p.Name, p.URL, p.Website, p.ScraperType,
		nullable(p.Category), nullable(p.Brand),
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

// DeleteProduct removes a product. Its price-history rows go with it via
// the cascading foreign key.
func (db *DB) DeleteProduct(ctx context.Context, instanceID string) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM products WHERE instance_id = $1`, instanceID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetProduct retrieves a single product by instance id.
func (db *DB) GetProduct(ctx context.Context, instanceID string) (*models.Product, error) {
	query := `
		SELECT instance_id, product_id, name, url, website, scraper_type,
		       category, brand, created_at, updated_at
		FROM products
		WHERE instance_id = $1`

	p := &models.Product{}
	var category, brand sql.NullString
	err := db.pool.QueryRow(ctx, query, instanceID).Scan(
		&p.InstanceID, &p.ProductID, &p.Name, &p.URL, &p.Website, &p.ScraperType,
		&category, &brand, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	p.Category = category.String
	p.Brand = brand.String
	return p, nil
}

// ListProducts returns every tracked product, grouped the way the UI
// shows them.
func (db *DB) ListProducts(ctx context.Context) ([]*models.Product, error) {
	query := `
		SELECT instance_id, product_id, name, url, website, scraper_type,
		       category, brand, created_at, updated_at
		FROM products
		ORDER BY website, name`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		var category, brand sql.NullString
		err := rows.Scan(
			&p.InstanceID, &p.ProductID, &p.Name, &p.URL, &p.Website, &p.ScraperType,
			&category, &brand, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Category = category.String
		p.Brand = brand.String
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
