package domain

import "time"

// Token types stored in the token repository.
const (
	TokenTypeAccess  = "access_token"
	TokenTypeRefresh = "refresh_token"
)

// Token represents an issued OAuth token. Access and refresh tokens share
// the same record shape; TokenType distinguishes them.
//
// AuthCode carries the authorization code value a token pair was minted
// from, so that code reuse can revoke every descendant token. ParentID
// links an access token to the refresh token that minted it, so revoking
// a refresh token can cascade.
type Token struct {
	ID         string    `bson:"_id,omitempty"       json:"id"`
	TokenType  string    `bson:"token_type"          json:"token_type"`
	TokenValue string    `bson:"token_value"         json:"token_value"`
	ClientID   string    `bson:"client_id"           json:"client_id"`
	UserID     string    `bson:"user_id"             json:"user_id"`
	Scope      string    `bson:"scope,omitempty"     json:"scope,omitempty"`
	AuthCode   string    `bson:"auth_code,omitempty" json:"auth_code,omitempty"`
	ParentID   string    `bson:"parent_id,omitempty" json:"parent_id,omitempty"`
	ExpiresAt  time.Time `bson:"expires_at"          json:"expires_at"`
	CreatedAt  time.Time `bson:"created_at"          json:"created_at"`
	LastUsedAt time.Time `bson:"last_used_at"        json:"last_used_at"`
	IsRevoked  bool      `bson:"is_revoked"          json:"is_revoked"`
}

// Expired reports whether the token is past its validity window at now.
// A token is valid iff now < CreatedAt + ttl, i.e. now < ExpiresAt.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
