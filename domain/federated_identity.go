package domain

import "time"

// FederatedIdentity links a local user account to an external identity
// provider. The (ProviderName, ProviderUserID) pair is unique.
type FederatedIdentity struct {
	ID             string    `bson:"_id,omitempty"            json:"id,omitempty"`
	UserID         string    `bson:"user_id"                  json:"user_id"`
	ProviderName   string    `bson:"provider_name"            json:"provider_name"`
	ProviderUserID string    `bson:"provider_user_id"         json:"provider_user_id"`
	ProviderEmail  string    `bson:"provider_email,omitempty" json:"provider_email,omitempty"`
	CreatedAt      time.Time `bson:"created_at"               json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"               json:"updated_at"`
}
