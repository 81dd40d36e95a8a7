package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/crystalbeauty/internal/backend"
	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/httputil"
)

// WishlistStore is the wishlist as the HTTP layer sees it.
type WishlistStore interface {
	Load(ctx context.Context) ([]string, error)
	IsMember(ctx context.Context, productID string) (bool, error)
	Count(ctx context.Context) (int, error)
	Add(ctx context.Context, productID string) (bool, error)
	Remove(ctx context.Context, productID string) (bool, error)
	WithProductDetails(ctx context.Context) ([]backend.Product, error)
}

// WishlistHandler handles HTTP requests for wishlist endpoints.
type WishlistHandler struct {
	wishlist WishlistStore
	logger   *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(w WishlistStore, logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{wishlist: w, logger: logger}
}

// GetWishlist handles GET /api/v1/wishlist
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	h.writeWishlist(w, r)
}

// GetProducts handles GET /api/v1/wishlist/products
func (h *WishlistHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.wishlist.WithProductDetails(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toProductResponses(products))
}

// GetItem handles GET /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	member, err := h.wishlist.IsMember(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, membershipResponse{ProductID: productID, InWishlist: member})
}

// AddItem handles PUT /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.wishlist.Add)
}

// RemoveItem handles DELETE /api/v1/wishlist/items/{productId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.wishlist.Remove)
}

func (h *WishlistHandler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (bool, error)) {
	ok, err := op(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !ok {
		httputil.WriteError(w, r, apperrors.LoginRequired(), h.logger)
		return
	}
	h.writeWishlist(w, r)
}

func (h *WishlistHandler) writeWishlist(w http.ResponseWriter, r *http.Request) {
	ids, err := h.wishlist.Load(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, wishlistResponse{ProductIDs: ids, Count: len(ids)})
}
