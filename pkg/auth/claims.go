package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Role gates access to owner-scoped and admin routes.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether the role is one the API understands.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Role   Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by API clients. UserID
// is the owner reference recorded on generations.
type AccessTokenClaims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}
