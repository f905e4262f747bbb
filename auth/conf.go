package auth

import (
	"errors"

	"golang.org/x/oauth2/clientcredentials"
)

// Conf configures how the CLI authenticates against a remote dispatch API.
// A static Token takes precedence over the client credentials flow.
type Conf struct {
	Token        string   `json:"token" yaml:"token"`
	ClientID     string   `json:"client_id" yaml:"client_id"`
	ClientSecret string   `json:"client_secret" yaml:"client_secret"`
	TokenURL     string   `json:"token_url" yaml:"token_url"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
}

// Enabled reports whether any credential is configured.
func (c Conf) Enabled() bool {
	return c.Token != "" || c.ClientID != ""
}

// Validate checks that the client credentials are complete.
func (c Conf) Validate() error {
	if c.Token != "" || c.ClientID == "" {
		return nil
	}
	if c.ClientSecret == "" || c.TokenURL == "" {
		return errors.New("client_secret and token_url are required with client_id")
	}
	return nil
}

func (c Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
}
