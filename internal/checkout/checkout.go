// Package checkout turns the cart into an order: it asks the backend for
// authoritative totals, places the order and empties the cart.
package checkout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/crystalbeauty/internal/backend"
	"github.com/utafrali/crystalbeauty/internal/bus"
	"github.com/utafrali/crystalbeauty/internal/cart"
	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/logger"
	"github.com/utafrali/crystalbeauty/pkg/validator"
)

// Identifier resolves the current shopper.
type Identifier interface {
	Current(ctx context.Context) (string, bool)
}

// Cart is the part of the cart store checkout uses.
type Cart interface {
	Load(ctx context.Context) ([]cart.LineItem, error)
	Deduct(ctx context.Context, ordered []cart.LineItem) (bool, error)
}

// OrderBackend quotes, places and lists orders.
type OrderBackend interface {
	QuoteOrder(ctx context.Context, req backend.QuoteRequest) (*backend.Quote, error)
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.Order, error)
	ListOrders(ctx context.Context) ([]backend.Order, error)
}

// ShippingDetails is where an order goes.
type ShippingDetails struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"required,max=500"`
	Phone   string `json:"phone" validate:"required,min=7,max=20"`
}

var ordersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_orders_placed_total",
	Help: "Orders placed, by checkout mode.",
}, []string{"mode"})

// Service implements checkout.
type Service struct {
	cart     Cart
	orders   OrderBackend
	identity Identifier
	bus      bus.Publisher
	logger   *slog.Logger
}

// NewService creates a checkout service.
func NewService(c Cart, orders OrderBackend, id Identifier, pub bus.Publisher, logger *slog.Logger) *Service {
	return &Service{
		cart:     c,
		orders:   orders,
		identity: id,
		bus:      pub,
		logger:   logger,
	}
}

// Quote prices the current cart.
func (s *Service) Quote(ctx context.Context) (*backend.Quote, error) {
	lines, err := s.cartLines(ctx)
	if err != nil {
		return nil, err
	}
	return s.orders.QuoteOrder(ctx, backend.QuoteRequest{Items: lines})
}

// QuoteItems prices an explicit set of lines, as for "buy now".
func (s *Service) QuoteItems(ctx context.Context, lines []backend.OrderLine) (*backend.Quote, error) {
	if _, ok := s.identity.Current(ctx); !ok {
		return nil, apperrors.LoginRequired()
	}
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("no items to quote")
	}
	return s.orders.QuoteOrder(ctx, backend.QuoteRequest{Items: lines})
}

// PlaceOrder orders everything in the cart and then takes the ordered lines
// out of it, so items added while the order was in flight stay in the cart. A
// failure to update the cart after the order went through is logged, not
// returned: the order exists either way.
func (s *Service) PlaceOrder(ctx context.Context, ship ShippingDetails) (*backend.Order, error) {
	if err := validator.Validate(ship); err != nil {
		return nil, err
	}
	lines, err := s.cartLines(ctx)
	if err != nil {
		return nil, err
	}

	order, err := s.create(ctx, ship, lines, "cart")
	if err != nil {
		return nil, err
	}

	if _, err := s.cart.Deduct(ctx, cartItems(lines)); err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "order placed but cart not cleared",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// BuyNow orders lines directly, leaving the cart as it is.
func (s *Service) BuyNow(ctx context.Context, ship ShippingDetails, lines []backend.OrderLine) (*backend.Order, error) {
	if err := validator.Validate(ship); err != nil {
		return nil, err
	}
	if _, ok := s.identity.Current(ctx); !ok {
		return nil, apperrors.LoginRequired()
	}
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("no items to order")
	}
	return s.create(ctx, ship, lines, "buy_now")
}

// Orders returns the shopper's order history.
func (s *Service) Orders(ctx context.Context) ([]backend.Order, error) {
	if _, ok := s.identity.Current(ctx); !ok {
		return nil, apperrors.LoginRequired()
	}
	return s.orders.ListOrders(ctx)
}

func (s *Service) create(ctx context.Context, ship ShippingDetails, lines []backend.OrderLine, mode string) (*backend.Order, error) {
	order, err := s.orders.CreateOrder(ctx, backend.CreateOrderRequest{
		Name:    ship.Name,
		Address: ship.Address,
		Phone:   ship.Phone,
		Items:   lines,
	})
	if err != nil {
		return nil, err
	}

	ordersPlacedTotal.WithLabelValues(mode).Inc()
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order placed",
		slog.String("order_id", order.OrderID),
		slog.String("mode", mode),
		slog.Int("lines", len(lines)),
	)
	s.bus.Publish(ctx, bus.OrdersUpdated)
	return order, nil
}

func cartItems(lines []backend.OrderLine) []cart.LineItem {
	items := make([]cart.LineItem, len(lines))
	for i, l := range lines {
		items[i] = cart.LineItem{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return items
}

func (s *Service) cartLines(ctx context.Context) ([]backend.OrderLine, error) {
	if _, ok := s.identity.Current(ctx); !ok {
		return nil, apperrors.LoginRequired()
	}
	items, err := s.cart.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart for checkout: %w", err)
	}
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("your cart is empty")
	}

	lines := make([]backend.OrderLine, len(items))
	for i, it := range items {
		lines[i] = backend.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines, nil
}
