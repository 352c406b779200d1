package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPlacedItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedEvent struct {
	OrderID   string            `json:"order_id"`
	UserID    string            `json:"user_id"`
	Email     string            `json:"email"`
	Total     decimal.Decimal   `json:"total"`
	Items     []OrderPlacedItem `json:"items"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewOrderPlacedEvent(order *Order, email string) OrderPlacedEvent {
	items := make([]OrderPlacedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderPlacedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return OrderPlacedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Email:     email,
		Total:     order.Total,
		Items:     items,
		Timestamp: order.CreatedAt,
	}
}
