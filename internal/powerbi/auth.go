package powerbi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials identify a service principal.
type Credentials struct {
	Tenant    string
	Principal string
	Secret    string
	// Authority is the identity provider root, e.g. https://login.microsoftonline.com.
	Authority string
	// Resource is the API resource the token is requested for.
	Resource string
}

// TokenConfig returns the client-credentials configuration for c.
func (c Credentials) TokenConfig() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     c.Principal,
		ClientSecret: c.Secret,
		TokenURL:     strings.TrimRight(c.Authority, "/") + "/" + c.Tenant + "/oauth2/v2.0/token",
		Scopes:       []string{strings.TrimRight(c.Resource, "/") + "/.default"},
	}
}

// NewHTTPClient returns an HTTP client that attaches a bearer token obtained
// with the client-credentials flow. Tokens are cached and refreshed on expiry.
func NewHTTPClient(ctx context.Context, creds Credentials, timeout time.Duration) *http.Client {
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	client := creds.TokenConfig().Client(ctx)
	client.Timeout = timeout
	return client
}
