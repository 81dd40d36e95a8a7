package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/crystalbeauty/internal/backend"
	"github.com/utafrali/crystalbeauty/pkg/httputil"
	"github.com/utafrali/crystalbeauty/pkg/pagination"
	"github.com/utafrali/crystalbeauty/pkg/validator"
)

// Catalog reads products.
type Catalog interface {
	ListProducts(ctx context.Context, params backend.ListParams) ([]backend.Product, error)
	GetProduct(ctx context.Context, id string) (*backend.Product, error)
	SearchProducts(ctx context.Context, query string) ([]backend.Product, error)
}

// CatalogHandler handles HTTP requests for product endpoints.
type CatalogHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(c Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, logger: logger}
}

// ListProducts handles GET /api/v1/products
//
// Query: category, min_price, max_price, available, sort, page, per_page.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params, err := listParamsFromRequest(r)
	if err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.Paginate(toProductResponses(products), pagination.FromRequest(r)))
}

// GetProduct handles GET /api/v1/products/{productId}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toProductResponse(*product))
}

// SearchProducts handles GET /api/v1/products/search?q=
func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, pagination.Paginate(toProductResponses(products), pagination.FromRequest(r)))
}

func listParamsFromRequest(r *http.Request) (backend.ListParams, error) {
	q := r.URL.Query()
	params := backend.ListParams{
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	}

	var err error
	if params.MinPrice, err = floatParam(q.Get("min_price")); err != nil {
		return params, fmt.Errorf("min_price: %w", err)
	}
	if params.MaxPrice, err = floatParam(q.Get("max_price")); err != nil {
		return params, fmt.Errorf("max_price: %w", err)
	}
	if v := q.Get("available"); v != "" {
		if params.AvailableOnly, err = strconv.ParseBool(v); err != nil {
			return params, fmt.Errorf("available: %w", err)
		}
	}
	return params, validator.Validate(params)
}

func floatParam(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}
