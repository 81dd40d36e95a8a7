package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// AddToWishlist mirrors a wishlist add to the backend.
func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/users/wishlist/"+url.PathEscape(productID), nil, nil); err != nil {
		return fmt.Errorf("mirror wishlist add: %w", err)
	}
	return nil
}

// RemoveFromWishlist mirrors a wishlist removal to the backend.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/users/wishlist/"+url.PathEscape(productID), nil, nil); err != nil {
		return fmt.Errorf("mirror wishlist remove: %w", err)
	}
	return nil
}
