package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
)

const gotruePath = "/auth/v1"

// RemoteProvider asks a GoTrue-compatible identity service who owns the token.
type RemoteProvider struct {
	baseURL    string
	gotrue     gotrue.Client
	httpClient *http.Client
	timeout    time.Duration
}

func NewRemoteProvider(baseURL, apiKey string, client *http.Client, timeout time.Duration) *RemoteProvider {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &RemoteProvider{
		baseURL:    baseURL,
		gotrue:     gotrue.New("", apiKey).WithCustomGoTrueURL(baseURL + gotruePath),
		httpClient: client,
		timeout:    timeout,
	}
}

func (p *RemoteProvider) Validate(ctx context.Context, accessToken string) (Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Identity{}, ErrUnauthorized
	}
	if p.baseURL == "" {
		return Identity{}, fmt.Errorf("auth provider url is empty")
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	scope := &requestScope{ctx: ctx, base: p.httpClient.Transport}
	httpClient := *p.httpClient
	httpClient.Transport = scope

	user, err := p.gotrue.WithClient(httpClient).WithToken(accessToken).GetUser()
	switch {
	case scope.status == http.StatusUnauthorized || scope.status == http.StatusForbidden:
		return Identity{}, ErrUnauthorized
	case err != nil:
		return Identity{}, fmt.Errorf("auth provider request: %w", err)
	}
	if user.ID == uuid.Nil {
		return Identity{}, ErrUnauthorized
	}

	return Identity{UserID: user.ID.String(), Email: user.Email}, nil
}

// requestScope binds a GoTrue call to ctx and records the upstream status.
type requestScope struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
}

func (s *requestScope) RoundTrip(req *http.Request) (*http.Response, error) {
	base := s.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req.WithContext(s.ctx))
	if resp != nil {
		s.status = resp.StatusCode
	}
	return resp, err
}
