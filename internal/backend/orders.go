package backend

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/validator"
)

// QuoteOrder prices lines against current catalog prices.
func (c *Client) QuoteOrder(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := validator.Validate(req); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	var q Quote
	if err := c.do(ctx, http.MethodPost, "/api/orders/quote", req, &q); err != nil {
		return nil, fmt.Errorf("quote order: %w", err)
	}
	return &q, nil
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := validator.Validate(req); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	var o Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &o, nil
}

// ListOrders returns the shopper's order history, newest first as served.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}
