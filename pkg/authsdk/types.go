package authsdk

import (
	"github.com/agrilink/agrilink/pkg/jwtx"
)

// ============================================================================
// Token Types
// ============================================================================

// LoginRequest is the credential payload for POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest carries the opaque refresh token for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest carries the refresh token to revoke for POST /v1/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned from the login and refresh endpoints.
type TokenResponse struct {
	// AccessToken is the signed JWT used to authenticate API requests
	AccessToken string `json:"accessToken"`

	// RefreshToken is the opaque token used to obtain new access tokens.
	// Each refresh rotates it; the previous value is revoked.
	RefreshToken string `json:"refreshToken"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expiresIn"`
}

// ============================================================================
// Validation Types
// ============================================================================

// ValidateRequest carries a raw access token for POST /internal/v1/validate.
type ValidateRequest struct {
	Token string `json:"token"`
}

// ValidationResult is the outcome of validating an access token. When Valid
// is false only ErrorMessage is populated, keeping failures free of claim
// detail.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Subject      string   `json:"subject,omitempty"`
	Username     string   `json:"username,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// UserInfoResponse describes a user account as returned from the internal
// user endpoints.
type UserInfoResponse struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
// Used in the /readyz endpoint to indicate the status of each component.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`
}
