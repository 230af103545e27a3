package domain

import "time"

// Role names known to the platform. Stored denormalized on the user row;
// the gateway forwards them verbatim in X-User-Roles.
const (
	RoleFarmer  = "FARMER"
	RoleAgent   = "AGENT"
	RoleAuditor = "AUDITOR"
	RoleAdmin   = "ADMIN"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2 encoded
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
