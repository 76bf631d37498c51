package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Username  string
	IsAdmin   bool
	IsSeller  bool
	SessionID string
}

// AccessTokenClaims represents the typed JWT issued to clients. The jti names the
// server-side session the token is bound to.
type AccessTokenClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin,omitempty"`
	IsSeller bool      `json:"is_seller,omitempty"`
	jwt.RegisteredClaims
}

// SessionID returns the session bound to the token.
func (c AccessTokenClaims) SessionID() string {
	return c.ID
}
