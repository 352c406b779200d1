package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Category    string          `json:"category"`
	OwnerID     *string         `json:"ownerId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (p *Product) OwnedBy(userID string) bool {
	return p.OwnerID != nil && *p.OwnerID == userID
}
