package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Random value sizes in bytes, before encoding.
const (
	// StateSize is used for the OAuth2 state parameter of a login URL.
	StateSize = 16
	// NonceSize is used for the OIDC nonce.
	NonceSize = 32
)

// GenerateToken returns size random bytes encoded as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateState returns a fresh login state value.
func GenerateState() (string, error) {
	return GenerateToken(StateSize)
}

// Fingerprint returns the base64url SHA-256 of value. One-time authorization
// codes are remembered by fingerprint so the raw code never reaches storage.
func Fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
