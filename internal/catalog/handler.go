package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type Store interface {
	ProductReader
	List(ctx context.Context, category string) ([]domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) (bool, error)
	SetPrice(ctx context.Context, id string, price decimal.Decimal) error
}

type Cache interface {
	ProductReader
	Invalidate(ctx context.Context, id string)
}

const invalidPrice = "price must be a positive number of at most 9999999999.99"

type Handler struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

// NewHandler builds the catalog endpoints. cache may be nil, in which case
// product lookups go straight to the store.
func NewHandler(store Store, cache Cache, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	products, err := h.store.List(r.Context(), category)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.reader().Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to fetch product")
		return
	}

	if product == nil {
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

type createRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    string           `json:"imageUrl"`
	Category    string           `json:"category"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentity(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Description == "" || req.Price == nil || req.ImageURL == "" || req.Category == "" {
		h.writeError(w, http.StatusBadRequest, "name, description, price, imageUrl, category are required")
		return
	}
	price, ok := domain.NormalizePrice(*req.Price)
	if !ok {
		h.writeError(w, http.StatusBadRequest, invalidPrice)
		return
	}

	owner := identity.UserID
	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
		OwnerID:     &owner,
	}
	if err := h.store.Create(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "owner_id", owner)
	h.writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

type updatePriceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price == nil {
		h.writeError(w, http.StatusBadRequest, invalidPrice)
		return
	}
	price, ok := domain.NormalizePrice(*req.Price)
	if !ok {
		h.writeError(w, http.StatusBadRequest, invalidPrice)
		return
	}

	product, ok := h.ownedProduct(w, r, id, "You can only update your own products")
	if !ok {
		return
	}

	if err := h.store.SetPrice(r.Context(), id, price); err != nil {
		h.logger.Error("failed to update product price", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}
	h.invalidate(r.Context(), id)

	product.Price = price
	h.logger.Info("product price updated", "product_id", id, "price", price.String())
	h.writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if _, ok := h.ownedProduct(w, r, id, "You can only delete your own products"); !ok {
		return
	}

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete product")
		return
	}
	h.invalidate(r.Context(), id)

	if !deleted {
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	h.logger.Info("product deleted", "product_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// ownedProduct loads the product from the store, bypassing the cache, and
// checks that the caller owns it.
func (h *Handler) ownedProduct(w http.ResponseWriter, r *http.Request, id, forbidden string) (*domain.Product, bool) {
	identity := auth.MustIdentity(r.Context())

	product, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "Product not found")
		return nil, false
	}
	if !product.OwnedBy(identity.UserID) {
		h.writeError(w, http.StatusForbidden, forbidden)
		return nil, false
	}
	return product, true
}

func (h *Handler) reader() ProductReader {
	if h.cache != nil {
		return h.cache
	}
	return h.store
}

func (h *Handler) invalidate(ctx context.Context, id string) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, id)
	}
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid product id")
		return "", false
	}
	return id, true
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
