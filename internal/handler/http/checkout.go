package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/crystalbeauty/internal/backend"
	"github.com/utafrali/crystalbeauty/internal/checkout"
	"github.com/utafrali/crystalbeauty/pkg/httputil"
	"github.com/utafrali/crystalbeauty/pkg/pagination"
	"github.com/utafrali/crystalbeauty/pkg/validator"
)

// CheckoutService quotes and places orders.
type CheckoutService interface {
	Quote(ctx context.Context) (*backend.Quote, error)
	QuoteItems(ctx context.Context, lines []backend.OrderLine) (*backend.Quote, error)
	PlaceOrder(ctx context.Context, ship checkout.ShippingDetails) (*backend.Order, error)
	BuyNow(ctx context.Context, ship checkout.ShippingDetails, lines []backend.OrderLine) (*backend.Order, error)
	Orders(ctx context.Context) ([]backend.Order, error)
}

// CheckoutHandler handles HTTP requests for checkout and order history.
type CheckoutHandler struct {
	checkout CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: svc, logger: logger}
}

// QuoteCart handles GET /api/v1/checkout/quote
func (h *CheckoutHandler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	quote, err := h.checkout.Quote(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toQuoteResponse(quote))
}

// QuoteItems handles POST /api/v1/checkout/quote
func (h *CheckoutHandler) QuoteItems(w http.ResponseWriter, r *http.Request) {
	var req QuoteItemsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	quote, err := h.checkout.QuoteItems(r.Context(), orderLines(req.Items))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, toQuoteResponse(quote))
}

// PlaceOrder handles POST /api/v1/checkout/orders
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), req.shipping())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, toOrderResponse(*order))
}

// BuyNow handles POST /api/v1/checkout/buy-now
func (h *CheckoutHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	var req BuyNowRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.checkout.BuyNow(r.Context(), req.shipping(), orderLines(req.Items))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, toOrderResponse(*order))
}

// ListOrders handles GET /api/v1/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.Orders(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	httputil.WriteData(w, http.StatusOK, pagination.Paginate(resp, pagination.FromRequest(r)))
}
