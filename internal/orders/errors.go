package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart = errors.New("cart is empty")

	// ErrTransactionConflict means the placement was rolled back because of
	// contention or a timeout. The cart is untouched and the caller may retry.
	ErrTransactionConflict = errors.New("order placement conflicted with a concurrent change")

	ErrStoreUnavailable = errors.New("order store unavailable")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
