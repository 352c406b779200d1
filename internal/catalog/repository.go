package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/store"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const selectProducts = `
	SELECT id, name, description, price, image_url, category, owner_id, created_at
	FROM products
`

func (r *ProductRepository) List(ctx context.Context, category string) ([]domain.Product, error) {
	query := selectProducts
	var args []any
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category, &p.OwnerID, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}

	err := r.db.QueryRowContext(ctx, selectProducts+` WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category, &p.OwnerID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()

	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, description, price, image_url, category, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.Category, p.OwnerID).Scan(&p.CreatedAt)
}

// Delete removes the product together with every cart line that references
// it. Order items are left alone: they carry their own price snapshot.
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	return store.InTx(ctx, r.db, nil, func(tx *sql.Tx) (bool, error) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = $1`, id); err != nil {
			return false, err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return false, err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return false, err
		}

		return rowsAffected > 0, nil
	})
}

// SetPrice changes the live catalog price. Carts pick it up on their next
// read; placed orders keep the price they were captured with.
func (r *ProductRepository) SetPrice(ctx context.Context, id string, price decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `UPDATE products SET price = $2 WHERE id = $1`, id, price)
	return err
}
