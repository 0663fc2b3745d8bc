package federation

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// ExternalUserInfo holds standardized user information retrieved from an
// external OAuth2 provider.
type ExternalUserInfo struct {
	ProviderUserID string // unique id within the provider (e.g. Google's 'sub')
	Email          string
	FirstName      string
	LastName       string
	PictureURL     string
	RawData        map[string]any
}

// OAuth2Provider is the OAuth client role against one external identity
// provider. Implementations wrap the provider-specific endpoints and
// user-info response shape.
type OAuth2Provider interface {
	// Name returns the unique identifier for the provider (e.g. "google").
	Name() string

	// GetAuthCodeURL generates the authorization URL the user should be
	// redirected to. state is the CSRF token bound to this round-trip.
	GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error)

	// ExchangeCode exchanges an authorization code for the provider's token.
	ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)

	// FetchUserInfo uses the provider token to retrieve user information.
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error)
}

// ProviderConfig is the static configuration for one provider. Providers
// are composed explicitly at startup; there is no dynamic registry.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// BaseProvider carries the shared oauth2.Config plumbing. Specific
// providers embed it and supply their endpoint and user-info parsing.
type BaseProvider struct {
	config   ProviderConfig
	endpoint oauth2.Endpoint
}

func newBaseProvider(cfg ProviderConfig, endpoint oauth2.Endpoint) *BaseProvider {
	return &BaseProvider{config: cfg, endpoint: endpoint}
}

func (b *BaseProvider) Name() string {
	return b.config.Name
}

// oauth2Config builds the x/oauth2 client configuration for one round-trip.
func (b *BaseProvider) oauth2Config(redirectURL string) (*oauth2.Config, error) {
	if b.config.ClientID == "" || b.config.ClientSecret == "" {
		return nil, ErrProviderMisconfigured
	}
	return &oauth2.Config{
		ClientID:     b.config.ClientID,
		ClientSecret: b.config.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       b.config.Scopes,
		Endpoint:     b.endpoint,
	}, nil
}

func (b *BaseProvider) GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error) {
	conf, err := b.oauth2Config(redirectURL)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (b *BaseProvider) ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	conf, err := b.oauth2Config(redirectURL)
	if err != nil {
		return nil, err
	}
	return conf.Exchange(ctx, code, opts...)
}

// httpClient returns an *http.Client authenticated with the given token.
func (b *BaseProvider) httpClient(ctx context.Context, token *oauth2.Token) *http.Client {
	conf, err := b.oauth2Config("")
	if err != nil {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	}
	return conf.Client(ctx, token)
}
