package http

import (
	"time"

	"github.com/utafrali/crystalbeauty/internal/backend"
	"github.com/utafrali/crystalbeauty/internal/cart"
	"github.com/utafrali/crystalbeauty/internal/checkout"
	"github.com/utafrali/crystalbeauty/internal/session"
)

// --- Request DTOs ---

// AddCartItemRequest adds quantity units of a product. A negative quantity
// takes units away.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=100"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// UpdateCartItemRequest sets a line to an absolute quantity.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

// OrderLineRequest is one product and quantity in a quote or buy-now request.
type OrderLineRequest struct {
	ProductID string `json:"product_id" validate:"required,max=100"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// QuoteItemsRequest prices an explicit set of lines.
type QuoteItemsRequest struct {
	Items []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
}

// PlaceOrderRequest orders the cart.
type PlaceOrderRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"required,max=500"`
	Phone   string `json:"phone" validate:"required,min=7,max=20"`
}

// BuyNowRequest orders explicit lines without touching the cart.
type BuyNowRequest struct {
	PlaceOrderRequest
	Items []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
}

// LoginRequest signs in with email and password.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Password  string `json:"password" validate:"required,min=6"`
}

// GoogleLoginRequest signs in with a Google access token.
type GoogleLoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

func (r PlaceOrderRequest) shipping() checkout.ShippingDetails {
	return checkout.ShippingDetails{Name: r.Name, Address: r.Address, Phone: r.Phone}
}

func orderLines(in []OrderLineRequest) []backend.OrderLine {
	out := make([]backend.OrderLine, len(in))
	for i, l := range in {
		out[i] = backend.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return out
}

// --- Response DTOs ---

type cartItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Count int                `json:"count"`
}

func toCartResponse(items []cart.LineItem) cartResponse {
	resp := cartResponse{Items: make([]cartItemResponse, len(items))}
	for i, it := range items {
		resp.Items[i] = cartItemResponse{ProductID: it.ProductID, Quantity: it.Quantity}
		resp.Count += it.Quantity
	}
	return resp
}

type wishlistResponse struct {
	ProductIDs []string `json:"product_ids"`
	Count      int      `json:"count"`
}

type membershipResponse struct {
	ProductID  string `json:"product_id"`
	InWishlist bool   `json:"in_wishlist"`
}

type badgesResponse struct {
	CartCount     int `json:"cart_count"`
	WishlistCount int `json:"wishlist_count"`
}

type productResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	AltNames      []string `json:"alt_names,omitempty"`
	Description   string   `json:"description,omitempty"`
	Images        []string `json:"images,omitempty"`
	Category      string   `json:"category,omitempty"`
	LabelledPrice float64  `json:"labelled_price"`
	Price         float64  `json:"price"`
	Stock         int      `json:"stock"`
	IsAvailable   bool     `json:"is_available"`
}

func toProductResponse(p backend.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		AltNames:      p.AltNames,
		Description:   p.Description,
		Images:        p.Images,
		Category:      p.Category,
		LabelledPrice: p.LabelledPrice,
		Price:         p.Price,
		Stock:         p.Stock,
		IsAvailable:   p.IsAvailable,
	}
}

func toProductResponses(ps []backend.Product) []productResponse {
	out := make([]productResponse, len(ps))
	for i, p := range ps {
		out[i] = toProductResponse(p)
	}
	return out
}

type quotedLineResponse struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	Image         string  `json:"image,omitempty"`
	LabelledPrice float64 `json:"labelled_price"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"quantity"`
}

func toQuotedLines(ls []backend.QuotedLine) []quotedLineResponse {
	out := make([]quotedLineResponse, len(ls))
	for i, l := range ls {
		out[i] = quotedLineResponse{
			ProductID:     l.ProductID,
			Name:          l.Name,
			Image:         l.Image,
			LabelledPrice: l.LabelledPrice,
			Price:         l.Price,
			Quantity:      l.Quantity,
		}
	}
	return out
}

type quoteResponse struct {
	Lines         []quotedLineResponse `json:"lines"`
	LabelledTotal float64              `json:"labelled_total"`
	Total         float64              `json:"total"`
	Discount      float64              `json:"discount"`
	Message       string               `json:"message,omitempty"`
}

func toQuoteResponse(q *backend.Quote) quoteResponse {
	return quoteResponse{
		Lines:         toQuotedLines(q.Lines),
		LabelledTotal: q.LabelledTotal,
		Total:         q.Total,
		Discount:      q.Discount(),
		Message:       q.Message,
	}
}

type orderResponse struct {
	OrderID       string               `json:"order_id"`
	Name          string               `json:"name"`
	Address       string               `json:"address"`
	Phone         string               `json:"phone"`
	Status        string               `json:"status"`
	Date          time.Time            `json:"date"`
	Lines         []quotedLineResponse `json:"lines"`
	LabelledTotal float64              `json:"labelled_total"`
	Total         float64              `json:"total"`
}

func toOrderResponse(o backend.Order) orderResponse {
	return orderResponse{
		OrderID:       o.OrderID,
		Name:          o.Name,
		Address:       o.Address,
		Phone:         o.Phone,
		Status:        o.Status,
		Date:          o.Date,
		Lines:         toQuotedLines(o.Lines),
		LabelledTotal: o.LabelledTotal,
		Total:         o.Total,
	}
}

type sessionResponse struct {
	Token    string `json:"token,omitempty"`
	Identity string `json:"identity,omitempty"`
	Role     string `json:"role,omitempty"`
	Message  string `json:"message,omitempty"`
}

func toSessionResponse(r *session.Result) sessionResponse {
	return sessionResponse{Token: r.Token, Identity: r.Identity, Role: r.Role, Message: r.Message}
}
