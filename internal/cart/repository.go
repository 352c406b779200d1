package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/store"
)

var (
	ErrProductNotFound = errors.New("product not found")

	// ErrQuantityLimit means the line would exceed domain.MaxLineQuantity.
	ErrQuantityLimit = errors.New("cart line quantity limit exceeded")
)

const selectItems = `
	SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at,
	       p.id, p.name, p.description, p.price, p.image_url, p.category, p.owner_id, p.created_at
	FROM cart_items c
	JOIN products p ON p.id = c.product_id
`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return queryItems(ctx, r.db, selectItems+`
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC, c.id
	`, userID)
}

// Add inserts the product into the user's cart or, when it is already there,
// increments its quantity. The upsert runs as a single statement so that
// concurrent adds never lose an increment.
func (r *Repository) Add(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity)
		SELECT $1, $2, p.id, $4
		FROM products p
		WHERE p.id = $3
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id
	`, uuid.New().String(), userID, productID, quantity).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || store.IsForeignKeyViolation(err) {
			return nil, ErrProductNotFound
		}
		if store.IsCheckViolation(err) {
			return nil, ErrQuantityLimit
		}
		return nil, err
	}

	return r.get(ctx, r.db, userID, id)
}

func (r *Repository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.CartItem, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE id = $1 AND user_id = $2
	`, itemID, userID, quantity)
	if err != nil {
		if store.IsCheckViolation(err) {
			return nil, ErrQuantityLimit
		}
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.get(ctx, r.db, userID, itemID)
}

func (r *Repository) Remove(ctx context.Context, userID, itemID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id = $1 AND user_id = $2
	`, itemID, userID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *Repository) Clear(ctx context.Context, userID string) error {
	return ClearForUser(ctx, r.db, userID)
}

func (r *Repository) get(ctx context.Context, q store.Querier, userID, itemID string) (*domain.CartItem, error) {
	items, err := queryItems(ctx, q, selectItems+`
		WHERE c.id = $1 AND c.user_id = $2
	`, itemID, userID)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, nil
	}

	return &items[0], nil
}

// LoadForUpdate reads the user's cart joined with the current product rows
// and locks the cart rows until q's transaction ends.
func LoadForUpdate(ctx context.Context, q store.Querier, userID string) ([]domain.CartItem, error) {
	return queryItems(ctx, q, selectItems+`
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id
		FOR UPDATE OF c
	`, userID)
}

// ClearForUser deletes every cart item of the user.
func ClearForUser(ctx context.Context, q store.Querier, userID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func queryItems(ctx context.Context, q store.Querier, query string, args ...any) ([]domain.CartItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		product := &domain.Product{}
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt,
			&product.ID, &product.Name, &product.Description, &product.Price,
			&product.ImageURL, &product.Category, &product.OwnerID, &product.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.Product = product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
