package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	facebookOAuth2 "golang.org/x/oauth2/facebook"
)

// Facebook's Graph API endpoint for user info; the fields parameter
// selects what to retrieve.
var FacebookUserInfoEndpoint = "https://graph.facebook.com/me?fields=id,name,first_name,last_name,email,picture"

// FacebookProvider implements the OAuth2Provider interface for Facebook.
type FacebookProvider struct {
	*BaseProvider
}

// NewFacebookProvider creates a new FacebookProvider. The public_profile
// and email scopes are always requested.
func NewFacebookProvider(cfg ProviderConfig) *FacebookProvider {
	if cfg.Name == "" {
		cfg.Name = "facebook"
	}
	cfg.Scopes = ensureScopes(cfg.Scopes, "public_profile", "email")

	return &FacebookProvider{
		BaseProvider: newBaseProvider(cfg, facebookOAuth2.Endpoint),
	}
}

// FetchUserInfo retrieves user information from Facebook's Graph API.
func (f *FacebookProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error) {
	client := f.httpClient(ctx, token)
	resp, err := client.Get(FacebookUserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("facebook: failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("facebook: failed to read user info response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook: failed to fetch user info: status %d, body: %s", resp.StatusCode, string(rawBody))
	}

	var rawUserInfo struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"` // empty if the user denied the email permission
		Picture   struct {
			Data struct {
				URL          string `json:"url"`
				IsSilhouette bool   `json:"is_silhouette"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.Unmarshal(rawBody, &rawUserInfo); err != nil {
		return nil, fmt.Errorf("facebook: failed to unmarshal user info: %w", err)
	}

	var rawDataMap map[string]any
	_ = json.Unmarshal(rawBody, &rawDataMap)

	firstName := rawUserInfo.FirstName
	lastName := rawUserInfo.LastName
	if firstName == "" && lastName == "" && rawUserInfo.Name != "" {
		parts := strings.SplitN(rawUserInfo.Name, " ", 2)
		firstName = parts[0]
		if len(parts) > 1 {
			lastName = parts[1]
		}
	}

	pictureURL := ""
	if rawUserInfo.Picture.Data.URL != "" && !rawUserInfo.Picture.Data.IsSilhouette {
		pictureURL = rawUserInfo.Picture.Data.URL
	}

	return &ExternalUserInfo{
		ProviderUserID: rawUserInfo.ID,
		Email:          rawUserInfo.Email,
		FirstName:      firstName,
		LastName:       lastName,
		PictureURL:     pictureURL,
		RawData:        rawDataMap,
	}, nil
}

var _ OAuth2Provider = (*FacebookProvider)(nil)
