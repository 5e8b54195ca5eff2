package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTProvider verifies HS256 access tokens signed with the identity provider's secret.
type JWTProvider struct {
	secret []byte
	now    func() time.Time
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue signs a token for userID. Used by local tooling and tests.
func (p *JWTProvider) Issue(userID, email string, ttl time.Duration) (string, time.Time, error) {
	if len(p.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return "", time.Time{}, fmt.Errorf("invalid access token subject: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := p.now().UTC()
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

func (p *JWTProvider) Validate(_ context.Context, raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" || len(p.secret) == 0 {
		return Identity{}, ErrUnauthorized
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || token == nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}

	return Identity{
		UserID: userID.String(),
		Email:  claims.Email,
	}, nil
}
