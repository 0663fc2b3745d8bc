package domain

import "time"

// UserStatus defines the possible statuses of a user account.
type UserStatus string

const (
	UserStatusActive UserStatus = "ACTIVE"
	UserStatusLocked UserStatus = "LOCKED"
)

// User represents a resource owner. Accounts created by delegated login
// have no password hash; password authentication always fails for them.
type User struct {
	ID           string     `bson:"_id,omitempty"           json:"id"`
	Username     string     `bson:"username"                json:"username"`
	PasswordHash string     `bson:"password_hash,omitempty" json:"-"`
	Status       UserStatus `bson:"status"                  json:"status"`
	FirstName    string     `bson:"first_name,omitempty"    json:"first_name,omitempty"`
	LastName     string     `bson:"last_name,omitempty"     json:"last_name,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"              json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"              json:"updated_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

// HasPassword reports whether the account supports password authentication.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
