package domain

import "time"

// ClientType defines the type of client application.
type ClientType string

const (
	// ClientTypeConfidential clients can securely store secrets.
	ClientTypeConfidential ClientType = "confidential"
	// ClientTypePublic clients cannot securely store secrets (mobile apps, SPAs).
	ClientTypePublic ClientType = "public"
)

// Client represents a registered OAuth2 client application.
//
//nolint:tagliatelle
type Client struct {
	ID                string     `bson:"client_id"               json:"client_id"`
	Secret            string     `bson:"client_secret,omitempty" json:"secret,omitempty"`
	Type              ClientType `bson:"client_type"             json:"type,omitempty"`
	Name              string     `bson:"client_name"             json:"name,omitempty"`
	RedirectURIs      []string   `bson:"redirect_uris"           json:"redirect_uris,omitempty"`
	AllowedScopes     []string   `bson:"allowed_scopes"          json:"allowed_scopes,omitempty"`
	AllowedGrantTypes []string   `bson:"allowed_grant_types"     json:"allowed_grant_types,omitempty"`
	CreatedAt         time.Time  `bson:"created_at"              json:"created_at,omitempty"`
	UpdatedAt         time.Time  `bson:"updated_at"              json:"updated_at,omitempty"`
	IsActive          bool       `bson:"is_active"               json:"is_active,omitempty"`
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, gt := range c.AllowedGrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// AllowsRedirectURI reports whether uri exactly matches one of the
// registered redirect URIs. Prefix or wildcard matching is deliberately
// not supported; it opens the door to open-redirect abuse.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
