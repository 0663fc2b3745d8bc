package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoSigningKey = errors.New("no signing key configured")

// TokenSigner signs the optional OIDC ID token. Access and refresh tokens
// stay opaque; only the ID token carries signed claims.
type TokenSigner struct {
	secretKey []byte
	issuer    string
}

// NewTokenSigner creates a signer using the given HS256 secret.
func NewTokenSigner(secretKey, issuer string) *TokenSigner {
	return &TokenSigner{secretKey: []byte(secretKey), issuer: issuer}
}

// SignIDToken builds and signs an ID token for the given subject and
// audience with the given lifetime.
func (s *TokenSigner) SignIDToken(userID, clientID string, ttl time.Duration) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": userID,
		"aud": clientID,
		"exp": jwt.NewNumericDate(now.Add(ttl)).Unix(),
		"iat": jwt.NewNumericDate(now).Unix(),
		"nbf": jwt.NewNumericDate(now).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign id token: %w", err)
	}
	return signed, nil
}
