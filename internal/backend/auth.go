package backend

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/crystalbeauty/pkg/errors"
	"github.com/utafrali/crystalbeauty/pkg/validator"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleLoginRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/users/login", loginRequest{Email: email, Password: password})
}

// Register creates an account. The backend answers with a token when it
// signs the new shopper in directly.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := validator.Validate(req); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users", req, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &resp, nil
}

// GoogleLogin exchanges a social-login access token for a bearer token.
func (c *Client) GoogleLogin(ctx context.Context, accessToken string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/api/users/google-login", googleLoginRequest{AccessToken: accessToken})
}

func (c *Client) authenticate(ctx context.Context, path string, req any) (*AuthResponse, error) {
	if err := validator.Validate(req); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if resp.Token == "" {
		return nil, apperrors.Unauthorized("login did not return a token")
	}
	return &resp, nil
}
