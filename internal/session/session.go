// Package session signs shoppers in and out. In storage mode the issued
// token is persisted under storage.TokenKey, which is where the identity
// resolver looks for it; in header mode the caller keeps the token and sends
// it back on every request.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/crystalbeauty/internal/backend"
	"github.com/utafrali/crystalbeauty/internal/bus"
	"github.com/utafrali/crystalbeauty/internal/storage"
	"github.com/utafrali/crystalbeauty/pkg/logger"
)

// Authenticator exchanges credentials for tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*backend.AuthResponse, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResponse, error)
	GoogleLogin(ctx context.Context, accessToken string) (*backend.AuthResponse, error)
}

// TokenDecoder derives an identity from a raw token.
type TokenDecoder interface {
	FromToken(token string) (string, bool)
}

// Result describes an established session.
type Result struct {
	Token    string `json:"token,omitempty"`
	Identity string `json:"identity,omitempty"`
	Role     string `json:"role,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Service implements login, registration and logout.
type Service struct {
	auth    Authenticator
	decoder TokenDecoder
	bus     bus.Publisher
	logger  *slog.Logger
	tokens  storage.Storage
}

// Option configures a Service.
type Option func(*Service)

// WithTokenStorage persists issued tokens in st and removes them on logout.
func WithTokenStorage(st storage.Storage) Option {
	return func(s *Service) { s.tokens = st }
}

// NewService creates a session service.
func NewService(auth Authenticator, decoder TokenDecoder, pub bus.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		auth:    auth,
		decoder: decoder,
		bus:     pub,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	resp, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, resp, "password")
}

// GoogleLogin signs in with a social-login access token.
func (s *Service) GoogleLogin(ctx context.Context, accessToken string) (*Result, error) {
	resp, err := s.auth.GoogleLogin(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, resp, "google")
}

// Register creates an account. When the backend signs the new shopper in
// straight away the session is established as for Login; otherwise the
// result carries only the backend's message.
func (s *Service) Register(ctx context.Context, req backend.RegisterRequest) (*Result, error) {
	resp, err := s.auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return &Result{Message: resp.Message}, nil
	}
	return s.establish(ctx, resp, "register")
}

// Logout forgets the persisted token. The shopper's cart and wishlist stay
// persisted under their identity and reappear on the next login.
func (s *Service) Logout(ctx context.Context) error {
	if s.tokens != nil {
		if err := s.tokens.Remove(ctx, storage.TokenKey); err != nil {
			return fmt.Errorf("remove session token: %w", err)
		}
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "shopper logged out")
	s.notify(ctx)
	return nil
}

func (s *Service) establish(ctx context.Context, resp *backend.AuthResponse, method string) (*Result, error) {
	if s.tokens != nil {
		if err := s.tokens.Set(ctx, storage.TokenKey, resp.Token); err != nil {
			return nil, fmt.Errorf("persist session token: %w", err)
		}
	}

	id, ok := s.decoder.FromToken(resp.Token)
	l := logger.WithContext(ctx, s.logger)
	if !ok {
		l.WarnContext(ctx, "issued token carries no identity", slog.String("method", method))
	} else {
		l.InfoContext(ctx, "shopper logged in", slog.String("method", method), slog.String("identity", id))
	}

	s.notify(ctx)
	return &Result{Token: resp.Token, Identity: id, Role: resp.Role, Message: resp.Message}, nil
}

// notify tells badge subscribers that the visible cart and wishlist changed
// owner.
func (s *Service) notify(ctx context.Context) {
	s.bus.Publish(ctx, bus.CartUpdated)
	s.bus.Publish(ctx, bus.WishlistUpdated)
}
