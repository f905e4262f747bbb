// Package auth provides bearer credentials for clients of the dispatch API.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// ClientCred hands out bearer tokens, fetching them through the OAuth2
// client credentials flow unless a static token is configured.
type ClientCred struct {
	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewClientCred returns a credential source for conf.
func NewClientCred(ctx context.Context, conf Conf) (*ClientCred, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.Token != "" {
		return &ClientCred{src: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: conf.Token, TokenType: "Bearer"})}, nil
	}
	cc := conf.toOauth2Config()
	return &ClientCred{src: oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx))}, nil
}

// Token returns a valid access token, refreshing it when it expired.
func (c *ClientCred) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, err := c.src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return tok, nil
}

// SetAuthHeader adds the Authorization header to r.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	tok, err := c.Token()
	if err != nil {
		return err
	}
	tok.SetAuthHeader(r)
	return nil
}

// HTTPClient returns a client that authenticates every request. base may
// be nil.
func (c *ClientCred) HTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	return &http.Client{
		Timeout:   base.Timeout,
		Transport: &oauth2.Transport{Source: c, Base: base.Transport},
	}
}
