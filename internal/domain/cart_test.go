package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewCart(t *testing.T) {
	t.Run("sums live prices and quantities", func(t *testing.T) {
		cart := NewCart([]CartItem{
			{ProductID: "a", Quantity: 2, Product: &Product{ID: "a", Price: decimal.NewFromInt(25)}},
			{ProductID: "b", Quantity: 1, Product: &Product{ID: "b", Price: decimal.NewFromInt(80)}},
		})

		if !cart.Total.Equal(decimal.NewFromInt(130)) {
			t.Errorf("expected total 130, got %s", cart.Total)
		}
		if cart.ItemCount != 3 {
			t.Errorf("expected item count 3, got %d", cart.ItemCount)
		}
	})

	t.Run("empty cart serializes items as empty list", func(t *testing.T) {
		cart := NewCart(nil)

		if cart.Items == nil {
			t.Fatal("expected non-nil items")
		}
		if !cart.Total.IsZero() {
			t.Errorf("expected zero total, got %s", cart.Total)
		}
	})

	t.Run("keeps fractional cents", func(t *testing.T) {
		cart := NewCart([]CartItem{
			{Quantity: 3, Product: &Product{Price: decimal.RequireFromString("19.99")}},
		})

		if cart.Total.String() != "59.97" {
			t.Errorf("expected 59.97, got %s", cart.Total)
		}
	})
}

func TestOrder_ItemsTotal(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{Quantity: 2, Price: decimal.NewFromInt(25)},
		{Quantity: 1, Price: decimal.NewFromInt(80)},
	}}

	if !order.ItemsTotal().Equal(decimal.NewFromInt(130)) {
		t.Errorf("expected 130, got %s", order.ItemsTotal())
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"19.999", "20", true},
		{"0.01", "0.01", true},
		{"0.004", "0", false},
		{"-5", "-5", false},
		{"9999999999.99", "9999999999.99", true},
		{"9999999999.995", "10000000000", false},
	}

	for _, tt := range tests {
		got, ok := NormalizePrice(decimal.RequireFromString(tt.in))
		if ok != tt.valid {
			t.Errorf("NormalizePrice(%s) valid = %v, want %v", tt.in, ok, tt.valid)
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("NormalizePrice(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
