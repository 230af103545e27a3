package domain

import "time"

// TokenPair represents what the login and refresh endpoints return: the
// short-lived access token (JWT) and the opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    time.Duration `json:"expiresIn"` // seconds until access expiry
}

// RefreshToken models the stored refresh token record in the DB. Only the
// SHA-256 fingerprint of the opaque value is persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
