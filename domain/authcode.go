package domain

import "time"

// AuthCode is a single-use OAuth 2.0 authorization code. It binds the
// authenticated user, the requesting client, the granted scope and the
// redirect URI the code was issued for.
type AuthCode struct {
	Code        string    `bson:"code"         json:"code"`
	ClientID    string    `bson:"client_id"    json:"client_id"`
	UserID      string    `bson:"user_id"      json:"user_id"`
	RedirectURI string    `bson:"redirect_uri" json:"redirect_uri"`
	Scope       string    `bson:"scope"        json:"scope"`
	ExpiresAt   time.Time `bson:"expires_at"   json:"expires_at"`
	Used        bool      `bson:"used"         json:"used"`
	CreatedAt   time.Time `bson:"created_at"   json:"created_at"`
}

// Expired reports whether the code is past its validity window at now.
func (c *AuthCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
