package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Token sizes in bytes of entropy before encoding.
const (
	// TokenSize128 yields 22 base64url chars. Key identifiers, short-lived nonces.
	TokenSize128 = 16
	// TokenSize256 yields 43 base64url chars. Refresh tokens, API keys.
	TokenSize256 = 32
	// TokenSize512 yields 86 base64url chars when something truly secret is needed.
	TokenSize512 = 64
)

// GenerateToken returns size bytes of cryptographically secure randomness as
// a base64url string without padding.
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

// MustGenerateToken is GenerateToken for initialization paths where a failing
// random source is unrecoverable anyway.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to generate token: %v", err))
	}
	return token
}

// FingerprintToken returns the SHA-256 fingerprint of a token as a base64url
// string (43 chars). Stores look tokens up by fingerprint so the opaque value
// itself never hits the database.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
