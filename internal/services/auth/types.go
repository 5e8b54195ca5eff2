package auth

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoCredential = errors.New("no credential")
)

// Provider validates an access token and returns the identity it was issued to.
type Provider interface {
	Validate(ctx context.Context, accessToken string) (Identity, error)
}
