package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OIDCClient is a minimal OpenID Connect relying party: issuer
// discovery, authorization code flow and userinfo lookup. Token
// contents beyond the access token are not interpreted; identity comes
// from the userinfo endpoint, which works with providers that omit the
// id_token for basic scopes.
type OIDCClient struct {
	oauth       *oauth2.Config
	userinfoURL string
	client      *http.Client
}

// OIDCOption configures the client.
type OIDCOption func(*OIDCClient)

// WithOIDCHTTPClient overrides the HTTP client used for discovery,
// token exchange and userinfo.
func WithOIDCHTTPClient(client *http.Client) OIDCOption {
	return func(c *OIDCClient) {
		if client != nil {
			c.client = client
		}
	}
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

// NewOIDCClient discovers the issuer's endpoints and builds the client.
func NewOIDCClient(ctx context.Context, issuer, clientID, clientSecret, scope, redirectURL string, opts ...OIDCOption) (*OIDCClient, error) {
	if issuer == "" {
		return nil, errors.New("auth: empty oidc issuer")
	}
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("auth: empty oidc client credentials")
	}
	out := &OIDCClient{client: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(out)
	}

	wellKnown := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return nil, err
	}
	resp, err := out.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: oidc discovery: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: oidc discovery: unexpected status %d", resp.StatusCode)
	}
	var doc discoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("auth: oidc discovery: %w", err)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.UserinfoEndpoint == "" {
		return nil, errors.New("auth: oidc discovery: incomplete document")
	}

	out.userinfoURL = doc.UserinfoEndpoint
	out.oauth = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       strings.Fields(scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  doc.AuthorizationEndpoint,
			TokenURL: doc.TokenEndpoint,
		},
	}
	return out, nil
}

// AuthCodeURL returns the provider login URL for the given state.
func (c *OIDCClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token.
func (c *OIDCClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	return c.oauth.Exchange(ctx, code)
}

type userinfoResponse struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

// Userinfo resolves the authenticated user behind a token.
func (c *OIDCClient) Userinfo(ctx context.Context, token *oauth2.Token) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp, err := c.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("auth: userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("auth: userinfo: unexpected status %d", resp.StatusCode)
	}
	var info userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return User{}, fmt.Errorf("auth: userinfo: %w", err)
	}
	if info.Subject == "" {
		return User{}, errors.New("auth: userinfo: missing sub")
	}
	name := info.Name
	if name == "" {
		name = info.PreferredUsername
	}
	return User{Subject: info.Subject, Name: name, Email: info.Email}, nil
}
