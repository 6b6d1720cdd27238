package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims is the signed claim set carried by bearer tokens
type JWTClaims struct {
	jwt.RegisteredClaims
	UserRole string `json:"role"`
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Role returns the role claim
func (c *JWTClaims) Role() Role {
	return Role(c.UserRole)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Principal is the verified identity of a request. It only lives for the
// duration of the request and is never persisted.
type Principal struct {
	Identity  string    `json:"identity"`
	Role      Role      `json:"role"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the principal holds the admin role
func (p Principal) IsAdmin() bool {
	return p.Role.IsAdmin()
}

// IsZero reports whether the principal is empty
func (p Principal) IsZero() bool {
	return p.Identity == "" && p.Role == ""
}

func principalFromClaims(c *JWTClaims) Principal {
	return Principal{
		Identity:  c.Subject(),
		Role:      c.Role(),
		TokenID:   c.ID,
		IssuedAt:  c.IssuedAt(),
		ExpiresAt: c.Expires(),
	}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
