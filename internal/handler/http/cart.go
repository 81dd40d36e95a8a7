package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/crystalbeauty/internal/cart"
	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/httputil"
	"github.com/utafrali/crystalbeauty/pkg/validator"
)

// CartStore is the cart as the HTTP layer sees it.
type CartStore interface {
	Load(ctx context.Context) ([]cart.LineItem, error)
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, productID string, qty int) (bool, error)
	UpdateQuantity(ctx context.Context, productID string, qty int) (bool, error)
	Remove(ctx context.Context, productID string) (bool, error)
	Clear(ctx context.Context) (bool, error)
}

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	cart     CartStore
	identity Identifier
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(c CartStore, id Identifier, logger *slog.Logger) *CartHandler {
	return &CartHandler{cart: c, identity: id, logger: logger}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	ok, err := h.cart.Add(r.Context(), req.ProductID, req.Quantity)
	if !h.checkMutation(w, r, ok, err) {
		return
	}
	h.writeCart(w, r)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	productID := chi.URLParam(r, "productId")
	ok, err := h.cart.UpdateQuantity(r.Context(), productID, req.Quantity)
	if err == nil && !ok {
		// The store declines both without a shopper and for a product not in the cart.
		if _, identified := h.identity.Current(r.Context()); identified {
			httputil.WriteError(w, r, apperrors.NotFound("cart item", productID), h.logger)
			return
		}
	}
	if !h.checkMutation(w, r, ok, err) {
		return
	}
	h.writeCart(w, r)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ok, err := h.cart.Remove(r.Context(), chi.URLParam(r, "productId"))
	if !h.checkMutation(w, r, ok, err) {
		return
	}
	h.writeCart(w, r)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ok, err := h.cart.Clear(r.Context())
	if !h.checkMutation(w, r, ok, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkMutation writes the failure response, if any, and reports whether the
// handler should go on. A store that declined without an error had no
// shopper to act for.
func (h *CartHandler) checkMutation(w http.ResponseWriter, r *http.Request, ok bool, err error) bool {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return false
	}
	if !ok {
		httputil.WriteError(w, r, apperrors.LoginRequired(), h.logger)
		return false
	}
	return true
}

func (h *CartHandler) writeCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.cart.Load(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toCartResponse(items))
}
