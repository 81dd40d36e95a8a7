package backend

import "time"

// Product is a catalog record as the backend serves it.
type Product struct {
	ID            string   `json:"productId"`
	Name          string   `json:"name"`
	AltNames      []string `json:"altNames,omitempty"`
	Description   string   `json:"description,omitempty"`
	Images        []string `json:"images,omitempty"`
	Category      string   `json:"category,omitempty"`
	LabelledPrice float64  `json:"labelledPrice"`
	Price         float64  `json:"price"`
	Stock         int      `json:"stock"`
	IsAvailable   bool     `json:"isAvailable"`
}

// OrderLine is a product and quantity sent for quoting or ordering.
type OrderLine struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"qty" validate:"required,gte=1"`
}

// QuoteRequest asks the backend to price a set of lines.
type QuoteRequest struct {
	Items []OrderLine `json:"orderedItems" validate:"required,min=1,dive"`
}

// QuotedLine is one priced line of a quote or order.
type QuotedLine struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Image         string  `json:"image,omitempty"`
	LabelledPrice float64 `json:"labelledPrice"`
	Price         float64 `json:"price"`
	Quantity      int     `json:"qty"`
}

// Quote holds the authoritative totals for a cart.
type Quote struct {
	Lines         []QuotedLine `json:"orderedItems"`
	LabelledTotal float64      `json:"labelledTotal"`
	Total         float64      `json:"total"`
	Message       string       `json:"message,omitempty"`
}

// Discount is what the shopper saves against labelled prices.
func (q *Quote) Discount() float64 {
	if q.LabelledTotal <= q.Total {
		return 0
	}
	return q.LabelledTotal - q.Total
}

// CreateOrderRequest places an order for the given lines.
type CreateOrderRequest struct {
	Name    string      `json:"name" validate:"required,max=200"`
	Address string      `json:"address" validate:"required,max=500"`
	Phone   string      `json:"phone" validate:"required,min=7,max=20"`
	Items   []OrderLine `json:"orderedItems" validate:"required,min=1,dive"`
}

// Order is a placed order.
type Order struct {
	OrderID       string       `json:"orderId"`
	Email         string       `json:"email,omitempty"`
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	Phone         string       `json:"phone"`
	Status        string       `json:"status"`
	Date          time.Time    `json:"date"`
	Lines         []QuotedLine `json:"orderedItems"`
	LabelledTotal float64      `json:"labelledTotal"`
	Total         float64      `json:"total"`
}

// RegisterRequest creates a shopper account.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Password  string `json:"password" validate:"required,min=6"`
}

// AuthResponse carries the opaque bearer token issued on login.
type AuthResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
	Role    string `json:"role,omitempty"`
}
