package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mysellum/marketplace-api/internal/common"
	"github.com/mysellum/marketplace-api/internal/product"
)

// Products persists product entities in Postgres.
type Products struct {
	DB DB
}

const productColumns = `
	id, store_id, title, description, price::text, stock_amount, img_src,
	created_at, updated_at`

func scanProduct(row rowScanner) (product.Product, error) {
	var (
		p     product.Product
		price string
	)
	err := row.Scan(
		&p.ID, &p.StoreID, &p.Title, &p.Description, &price,
		&p.StockAmount, &p.ImgSrc, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return product.Product{}, err
	}
	p.Price, err = parseNumeric(price)
	if err != nil {
		return product.Product{}, fmt.Errorf("parse price: %w", err)
	}
	return p, nil
}

// Create inserts a product.
func (r Products) Create(ctx context.Context, p product.Product) (product.Product, error) {
	p.ID = uuid.NewString()
	created, err := scanProduct(r.DB.QueryRow(ctx, `
		INSERT INTO products (id, store_id, title, description, price, stock_amount, img_src)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+productColumns,
		p.ID, p.StoreID, p.Title, p.Description, p.Price, p.StockAmount, p.ImgSrc))
	if err != nil {
		return product.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

// Find returns one product by id.
func (r Products) Find(ctx context.Context, id string) (product.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return product.Product{}, notFoundOr(err, "product not found")
	}
	return p, nil
}

// ListByStore returns the store's products, newest first.
func (r Products) ListByStore(ctx context.Context, storeID string) ([]product.Product, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE store_id = $1 ORDER BY created_at DESC`,
		storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]product.Product, error) {
	var out []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update overwrites the product's mutable fields.
func (r Products) Update(ctx context.Context, p product.Product) (product.Product, error) {
	updated, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET
			title = $2, description = $3, price = $4, img_src = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Title, p.Description, p.Price, p.ImgSrc))
	if err != nil {
		return product.Product{}, notFoundOr(err, "product not found")
	}
	return updated, nil
}

// UpdateStock sets the stock amount only.
func (r Products) UpdateStock(ctx context.Context, id string, stockAmount int) (product.Product, error) {
	updated, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products SET stock_amount = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, stockAmount))
	if err != nil {
		return product.Product{}, notFoundOr(err, "product not found")
	}
	return updated, nil
}

// Delete removes a product.
func (r Products) Delete(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("product not found")
	}
	return nil
}

// StoreHasProduct is an existence query, not a count.
func (r Products) StoreHasProduct(ctx context.Context, storeID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE store_id = $1)`, storeID).Scan(&exists)
	return exists, err
}
