package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	googleOAuth2 "golang.org/x/oauth2/google"
)

var GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider implements the OAuth2Provider interface for Google.
type GoogleProvider struct {
	*BaseProvider
}

// NewGoogleProvider creates a new GoogleProvider. The openid, profile and
// email scopes are always requested so the user-info call can map the
// account to a local principal.
func NewGoogleProvider(cfg ProviderConfig) *GoogleProvider {
	if cfg.Name == "" {
		cfg.Name = "google"
	}
	cfg.Scopes = ensureScopes(cfg.Scopes, "openid", "profile", "email")

	return &GoogleProvider{
		BaseProvider: newBaseProvider(cfg, googleOAuth2.Endpoint),
	}
}

// FetchUserInfo retrieves user information from Google's userinfo endpoint.
func (g *GoogleProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error) {
	client := g.httpClient(ctx, token)
	resp, err := client.Get(GoogleUserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("google: failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google: failed to read user info response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: failed to fetch user info: status %d, body: %s", resp.StatusCode, string(rawBody))
	}

	var rawUserInfo struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.Unmarshal(rawBody, &rawUserInfo); err != nil {
		return nil, fmt.Errorf("google: failed to unmarshal user info: %w", err)
	}

	var rawDataMap map[string]any
	_ = json.Unmarshal(rawBody, &rawDataMap)

	return &ExternalUserInfo{
		ProviderUserID: rawUserInfo.Sub,
		Email:          rawUserInfo.Email,
		FirstName:      rawUserInfo.GivenName,
		LastName:       rawUserInfo.FamilyName,
		PictureURL:     rawUserInfo.Picture,
		RawData:        rawDataMap,
	}, nil
}

// ensureScopes appends any of the wanted scopes not already present.
func ensureScopes(scopes []string, wanted ...string) []string {
	seen := make(map[string]bool, len(scopes))
	for _, s := range scopes {
		seen[s] = true
	}
	for _, w := range wanted {
		if !seen[w] {
			scopes = append(scopes, w)
			seen[w] = true
		}
	}
	return scopes
}

var _ OAuth2Provider = (*GoogleProvider)(nil)
