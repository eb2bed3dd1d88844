package models

import (
	"time"
)

// Role represents the role of a user within an organization
type Role string

const (
	RoleOwner Role = "OWNER"
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// ParseRole maps a wire value onto the closed role set.
// Matching is exact; anything else is rejected rather than coerced.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleUser:
		return Role(s), true
	default:
		return "", false
	}
}

// IsValid returns true if the role is one of the known values
func (r Role) IsValid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// DecodedIdentity holds the claims of a verified provider token.
// It is request-local and never persisted.
type DecodedIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	IsAdmin       bool // provider-level custom claim, informational only
	IssuedAt      time.Time
	ExpiresAt     time.Time
	AuthTime      time.Time
}

// UserContext is the enriched identity attached to an authenticated request.
// It is built once per request and must not be mutated afterwards.
type UserContext struct {
	UserID         string `json:"userId"`
	Email          string `json:"email,omitempty"`
	OrganizationID string `json:"organizationId"`
	Role           Role   `json:"role"`
}

// HasRole returns true if the user holds any of the given roles
func (u *UserContext) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
