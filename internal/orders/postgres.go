package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-api/internal/cart"
	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/store"
)

// PostgresStore implements UnitOfWork and Reader on top of Postgres.
// Placement transactions run serializable.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Do(ctx context.Context, fn func(tx Tx) error) error {
	_, err := store.InTx(ctx, s.db, store.Serializable(), func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, fn(&pgTx{tx: tx})
	})
	return err
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LoadCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return cart.LoadForUpdate(ctx, t.tx, userID)
}

func (t *pgTx) ClearCart(ctx context.Context, userID string) error {
	return cart.ClearForUser(ctx, t.tx, userID)
}

func (t *pgTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total, status, shipping_address, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, order.ID, order.UserID, order.Total, order.Status, order.ShippingAddress, order.PaymentMethod, order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID

		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price, i)
		if err != nil {
			return err
		}
	}

	return nil
}

const selectOrders = `
	SELECT id, user_id, total, status, shipping_address, payment_method, created_at
	FROM orders
`

func (s *PostgresStore) GetForUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	order := &domain.Order{Items: []domain.OrderItem{}}

	err := s.db.QueryRowContext(ctx, selectOrders+`
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&order.ID, &order.UserID, &order.Total, &order.Status,
		&order.ShippingAddress, &order.PaymentMethod, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	orders := map[string]*domain.Order{order.ID: order}
	if err := s.loadItems(ctx, orders, []string{order.ID}); err != nil {
		return nil, err
	}

	return order, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrders+`
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order := &domain.Order{Items: []domain.OrderItem{}}
		if err := rows.Scan(&order.ID, &order.UserID, &order.Total, &order.Status,
			&order.ShippingAddress, &order.PaymentMethod, &order.CreatedAt); err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := s.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// loadItems attaches items to the given orders in one query, embedding the
// current product row when the product still exists.
func (s *PostgresStore) loadItems(ctx context.Context, orders map[string]*domain.Order, orderIDs []string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.price,
		       p.id, p.name, p.description, p.price, p.image_url, p.category, p.owner_id, p.created_at
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_id, i.position, i.id
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		var p nullableProduct
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category, &p.OwnerID, &p.CreatedAt); err != nil {
			return err
		}
		item.Product = p.product()

		order := orders[item.OrderID]
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

type nullableProduct struct {
	ID          sql.NullString
	Name        sql.NullString
	Description sql.NullString
	Price       decimal.NullDecimal
	ImageURL    sql.NullString
	Category    sql.NullString
	OwnerID     *string
	CreatedAt   sql.NullTime
}

func (p nullableProduct) product() *domain.Product {
	if !p.ID.Valid {
		return nil
	}
	return &domain.Product{
		ID:          p.ID.String,
		Name:        p.Name.String,
		Description: p.Description.String,
		Price:       p.Price.Decimal,
		ImageURL:    p.ImageURL.String,
		Category:    p.Category.String,
		OwnerID:     p.OwnerID,
		CreatedAt:   p.CreatedAt.Time,
	}
}
