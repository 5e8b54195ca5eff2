package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const DefaultCookieName = "sb-access-token"

// Service resolves the session attached to an HTTP request. It keeps no
// state between requests and performs exactly one provider round trip.
type Service struct {
	provider   Provider
	cookieName string
}

func NewService(provider Provider, cookieName string) *Service {
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultCookieName
	}
	return &Service{
		provider:   provider,
		cookieName: cookieName,
	}
}

// Resolve returns ErrUnauthorized for every failure; the wrapped cause is for logs only.
func (s *Service) Resolve(ctx context.Context, r *http.Request) (Identity, error) {
	if s == nil || s.provider == nil {
		return Identity{}, fmt.Errorf("%w: provider is not configured", ErrUnauthorized)
	}

	token, ok := TokenFromRequest(r, s.cookieName)
	if !ok {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrNoCredential)
	}

	identity, err := s.provider.Validate(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if strings.TrimSpace(identity.UserID) == "" {
		return Identity{}, fmt.Errorf("%w: empty identity", ErrUnauthorized)
	}

	return identity, nil
}

// TokenFromRequest prefers the Authorization header and falls back to the session cookie.
func TokenFromRequest(r *http.Request, cookieName string) (string, bool) {
	if r == nil {
		return "", false
	}
	if token, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookieName == "" {
		return "", false
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
