package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

// Publisher delivers order events to other services.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// retryAfterSeconds is advertised to clients on a placement conflict.
const retryAfterSeconds = 1

type Handler struct {
	service   *Service
	publisher Publisher
	logger    *slog.Logger

	placed     metric.Int64Counter
	orderValue metric.Float64Histogram
}

// NewHandler wires the order endpoints. publisher may be nil, in which case
// no order.placed events are emitted.
func NewHandler(service *Service, publisher Publisher, logger *slog.Logger) (*Handler, error) {
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders successfully placed"),
	)
	if err != nil {
		return nil, err
	}

	orderValue, err := meter.Float64Histogram("orders.value",
		metric.WithDescription("Total value of placed orders"),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		service:    service,
		publisher:  publisher,
		logger:     logger,
		placed:     placed,
		orderValue: orderValue,
	}, nil
}

type placeOrderRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Place(r.Context(), identity.UserID, PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		var validationErr *ValidationError
		switch {
		case errors.As(err, &validationErr):
			h.writeError(w, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, ErrEmptyCart):
			h.writeError(w, http.StatusBadRequest, "Cart is empty")
		case errors.Is(err, ErrTransactionConflict):
			h.logger.Warn("order placement conflicted", "error", err, "user_id", identity.UserID)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			h.writeError(w, http.StatusConflict, "Order could not be placed due to a concurrent change, please retry")
		case errors.Is(err, ErrStoreUnavailable):
			h.logger.Error("order store unavailable", "error", err, "user_id", identity.UserID)
			h.writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		default:
			h.logger.Error("failed to create order", "error", err, "user_id", identity.UserID)
			h.writeError(w, http.StatusInternalServerError, "Failed to create order")
		}
		return
	}

	h.placed.Add(r.Context(), 1)
	h.orderValue.Record(r.Context(), order.Total.InexactFloat64())

	if h.publisher != nil {
		event := domain.NewOrderPlacedEvent(order, identity.Email)
		if err := h.publisher.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID, "items", len(order.Items), "total", order.Total.String())
	h.writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	orders, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch orders")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	order, err := h.service.Get(r.Context(), id, identity.UserID)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch order")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
