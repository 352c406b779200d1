package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/store"
)

var (
	tracer = otel.Tracer("orders")
	meter  = otel.Meter("orders")
)

// Tx is the transaction-scoped view of the store used while placing an
// order. Every call made through one Tx commits or rolls back together.
type Tx interface {
	LoadCart(ctx context.Context, userID string) ([]domain.CartItem, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	ClearCart(ctx context.Context, userID string) error
}

// UnitOfWork runs fn in a single transaction: committed when fn returns nil,
// rolled back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}

type Reader interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	GetForUser(ctx context.Context, id, userID string) (*domain.Order, error)
}

type Options struct {
	// TxTimeout bounds a single placement attempt.
	TxTimeout time.Duration
	// MaxAttempts caps how often a conflicting placement is retried.
	MaxAttempts uint
	// RetryInitialInterval is the first backoff delay between attempts.
	RetryInitialInterval time.Duration
	// PlaceTimeout bounds a whole placement, retries and backoff included.
	PlaceTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TxTimeout <= 0 {
		o.TxTimeout = 5 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 20 * time.Millisecond
	}
	if o.PlaceTimeout <= 0 {
		o.PlaceTimeout = 8 * time.Second
	}
	return o
}

type Service struct {
	uow      UnitOfWork
	reader   Reader
	opts     Options
	now      func() time.Time
	attempts metric.Int64Counter
}

func NewService(uow UnitOfWork, reader Reader, opts Options) (*Service, error) {
	attempts, err := meter.Int64Counter("orders.place.attempts",
		metric.WithDescription("Order placement transaction attempts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		uow:      uow,
		reader:   reader,
		opts:     opts.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
		attempts: attempts,
	}, nil
}

type PlaceOrderInput struct {
	ShippingAddress string
	PaymentMethod   string
}

func (in PlaceOrderInput) normalize() (PlaceOrderInput, error) {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)

	if in.ShippingAddress == "" {
		return in, &ValidationError{Field: "shippingAddress", Message: "shippingAddress is required"}
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentCashOnDelivery
	}
	return in, nil
}

// Place turns the user's cart into a pending order and empties the cart, all
// in one transaction. The cart is read inside that transaction, so two
// concurrent placements over the same cart yield one order and one
// ErrEmptyCart. Conflicting attempts are retried up to MaxAttempts times
// or until PlaceTimeout elapses, whichever comes first.
func (s *Service) Place(ctx context.Context, userID string, in PlaceOrderInput) (*domain.Order, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	parent := ctx
	ctx, span := tracer.Start(ctx, "orders.Place", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.opts.PlaceTimeout)
	defer cancel()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.opts.RetryInitialInterval

	order, err := backoff.Retry(ctx, func() (*domain.Order, error) {
		order, err := s.placeOnce(ctx, userID, in)
		switch {
		case err == nil:
			s.recordAttempt(ctx, "committed")
			return order, nil
		case errors.Is(err, store.ErrConflict):
			s.recordAttempt(ctx, "conflict")
			span.AddEvent("placement conflict, retrying")
			return nil, err
		case errors.Is(err, ErrEmptyCart):
			s.recordAttempt(ctx, "empty_cart")
		case isValidation(err):
			s.recordAttempt(ctx, "rejected")
		default:
			s.recordAttempt(ctx, "failed")
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxTries(s.opts.MaxAttempts),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
			err = fmt.Errorf("%w: placement deadline: %w", store.ErrConflict, err)
		}
		err = translate(err)
		if !errors.Is(err, ErrEmptyCart) && !isValidation(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)
	return order, nil
}

func (s *Service) placeOnce(ctx context.Context, userID string, in PlaceOrderInput) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	var placed *domain.Order
	err := s.uow.Do(ctx, func(tx Tx) error {
		items, err := tx.LoadCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		order := newOrder(userID, in, items, s.now())
		if order.Total.GreaterThan(domain.MaxAmount) {
			return &ValidationError{Field: "total", Message: "order total exceeds " + domain.MaxAmount.StringFixed(2)}
		}

		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return placed, nil
}

// newOrder snapshots the cart lines into order items, copying the product
// price read in the current transaction.
func newOrder(userID string, in PlaceOrderInput, items []domain.CartItem, now time.Time) *domain.Order {
	order := &domain.Order{
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		CreatedAt:       now,
		Items:           make([]domain.OrderItem, 0, len(items)),
	}

	for _, item := range items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Product.Price,
			Product:   item.Product,
		})
	}
	order.Total = order.ItemsTotal()

	return order
}

func isValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

func translate(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrTransactionConflict, err)
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func (s *Service) recordAttempt(ctx context.Context, outcome string) {
	s.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.reader.ListByUser(ctx, userID)
	if err != nil {
		return nil, translate(store.Classify(err))
	}
	return orders, nil
}

// Get returns the order only when it belongs to userID; otherwise nil.
func (s *Service) Get(ctx context.Context, id, userID string) (*domain.Order, error) {
	order, err := s.reader.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, translate(store.Classify(err))
	}
	return order, nil
}
