package backend

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Sort orders for product lists.
const (
	SortDefault   = ""
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// ListParams narrows a product list. The backend returns the catalog whole,
// so filtering and sorting run client-side in Filter. Zero values mean "no
// constraint".
type ListParams struct {
	Category      string  `validate:"omitempty,max=100"`
	MinPrice      float64 `validate:"gte=0"`
	MaxPrice      float64 `validate:"gte=0"`
	AvailableOnly bool
	Sort          string `validate:"omitempty,oneof=price_asc price_desc name"`
}

// ListProducts fetches the catalog and applies params.
func (c *Client) ListProducts(ctx context.Context, params ListParams) ([]Product, error) {
	var products []Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return Filter(products, params), nil
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

// SearchProducts runs the backend's name search.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Product{}, nil
	}
	var products []Product
	if err := c.do(ctx, http.MethodGet, "/api/products/search/"+url.PathEscape(query), nil, &products); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// Filter returns the products matching params in the requested order. The
// input slice is not modified; SortDefault keeps catalog order.
func Filter(products []Product, params ListParams) []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if params.Category != "" && !strings.EqualFold(p.Category, params.Category) {
			continue
		}
		if params.MinPrice > 0 && p.Price < params.MinPrice {
			continue
		}
		if params.MaxPrice > 0 && p.Price > params.MaxPrice {
			continue
		}
		if params.AvailableOnly && (!p.IsAvailable || p.Stock <= 0) {
			continue
		}
		out = append(out, p)
	}

	switch params.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(b.Price, a.Price) })
	case SortName:
		slices.SortStableFunc(out, func(a, b Product) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	}
	return out
}
