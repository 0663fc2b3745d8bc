// Package randutil generates the opaque values the protocol depends on:
// authorization codes, token values and CSRF state. All values come from
// crypto/rand with at least 256 bits of entropy.
package randutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const opaqueValueBytes = 32

// OpaqueValue returns a URL-safe random string suitable for use as an
// authorization code or token value.
func OpaqueValue() (string, error) {
	b := make([]byte, opaqueValueBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// State returns a random string for the OAuth state parameter used in
// delegated login round-trips.
func State() (string, error) {
	return OpaqueValue()
}
