package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	Product   *Product  `json:"product"`
}

// Subtotal uses the price of the joined product, i.e. the live catalog price.
func (c CartItem) Subtotal() decimal.Decimal {
	if c.Product == nil {
		return decimal.Zero
	}
	return c.Product.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

type Cart struct {
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func NewCart(items []CartItem) Cart {
	if items == nil {
		items = []CartItem{}
	}
	cart := Cart{Items: items, Total: decimal.Zero}
	for _, item := range items {
		cart.Total = cart.Total.Add(item.Subtotal())
		cart.ItemCount += item.Quantity
	}
	return cart
}
