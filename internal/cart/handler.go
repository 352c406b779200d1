package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

// Store is the cart persistence used by Handler; *Repository implements it.
type Store interface {
	List(ctx context.Context, userID string) ([]domain.CartItem, error)
	Add(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.CartItem, error)
	Remove(ctx context.Context, userID, itemID string) (bool, error)
	Clear(ctx context.Context, userID string) error
}

var quantityTooLarge = fmt.Sprintf("quantity must not exceed %d", domain.MaxLineQuantity)

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	items, err := h.store.List(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to fetch cart", "error", err, "user_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch cart")
		return
	}

	h.writeJSON(w, http.StatusOK, domain.NewCart(items))
}

type addRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" || req.Quantity == 0 {
		h.writeError(w, http.StatusBadRequest, "productId and quantity are required")
		return
	}
	if req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, "quantity must be a positive number")
		return
	}
	if req.Quantity > domain.MaxLineQuantity {
		h.writeError(w, http.StatusBadRequest, quantityTooLarge)
		return
	}
	if _, err := uuid.Parse(req.ProductID); err != nil {
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	item, err := h.store.Add(r.Context(), identity.UserID, req.ProductID, req.Quantity)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		if errors.Is(err, ErrQuantityLimit) {
			h.writeError(w, http.StatusBadRequest, quantityTooLarge)
			return
		}
		h.logger.Error("failed to add item to cart", "error", err, "user_id", identity.UserID, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "Failed to add item to cart")
		return
	}

	h.logger.Info("cart item added", "user_id", identity.UserID, "product_id", req.ProductID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusCreated, map[string]any{"cartItem": item})
}

type updateRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	itemID, ok := h.itemID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		h.writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	if req.Quantity < 1 {
		h.writeError(w, http.StatusBadRequest, "quantity must be a positive number")
		return
	}
	if req.Quantity > domain.MaxLineQuantity {
		h.writeError(w, http.StatusBadRequest, quantityTooLarge)
		return
	}

	item, err := h.store.UpdateQuantity(r.Context(), identity.UserID, itemID, req.Quantity)
	if err != nil {
		if errors.Is(err, ErrQuantityLimit) {
			h.writeError(w, http.StatusBadRequest, quantityTooLarge)
			return
		}
		h.logger.Error("failed to update cart item", "error", err, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "Failed to update cart item")
		return
	}

	if item == nil {
		h.writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"cartItem": item})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	itemID, ok := h.itemID(w, r)
	if !ok {
		return
	}

	removed, err := h.store.Remove(r.Context(), identity.UserID, itemID)
	if err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "Failed to remove cart item")
		return
	}

	if !removed {
		h.writeError(w, http.StatusNotFound, "Cart item not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart"})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	if err := h.store.Clear(r.Context(), identity.UserID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", identity.UserID)
		h.writeError(w, http.StatusInternalServerError, "Failed to clear cart")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (string, bool) {
	itemID := r.PathValue("itemId")
	if _, err := uuid.Parse(itemID); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid item id")
		return "", false
	}
	return itemID, true
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
