// Package identity derives the shopper's identity from the opaque bearer
// token. The token is decoded without verification: the result only
// namespaces client-side storage keys and is never used for authorization,
// which the backend enforces on every privileged call.
package identity

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/crystalbeauty/internal/storage"
	"github.com/utafrali/crystalbeauty/pkg/middleware"
)

// TokenSource supplies the current bearer token, if any.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, bool)

// Token calls f.
func (f TokenSourceFunc) Token(ctx context.Context) (string, bool) { return f(ctx) }

// FromRequest reads the token the BearerToken middleware put on the context.
var FromRequest TokenSource = TokenSourceFunc(middleware.TokenFromContext)

// FromStorage reads the token persisted under storage.TokenKey. Storage
// failures read as "no token".
func FromStorage(store storage.Storage) TokenSource {
	return TokenSourceFunc(func(ctx context.Context) (string, bool) {
		token, ok, err := store.Get(ctx, storage.TokenKey)
		if err != nil || !ok || token == "" {
			return "", false
		}
		return token, true
	})
}

// Resolver answers "who is the current shopper".
type Resolver struct {
	source TokenSource
	parser *jwt.Parser
}

// NewResolver creates a resolver reading tokens from source.
func NewResolver(source TokenSource) *Resolver {
	return &Resolver{
		source: source,
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
	}
}

// Current returns the identity carried by the current token: its "email"
// claim, else its "sub" claim. A missing or undecodable token yields
// ("", false).
func (r *Resolver) Current(ctx context.Context) (string, bool) {
	token, ok := r.source.Token(ctx)
	if !ok {
		return "", false
	}
	return r.FromToken(token)
}

// FromToken extracts the identity from a raw token.
func (r *Resolver) FromToken(token string) (string, bool) {
	segments := strings.Split(token, ".")
	if len(segments) < 2 {
		return "", false
	}

	payload, err := r.parser.DecodeSegment(segments[1])
	if err != nil {
		return "", false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", false
	}

	if email, ok := claims["email"].(string); ok && email != "" {
		return email, true
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, true
	}
	return "", false
}
