package auth

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/users"
)

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest captures the credentials and the visitor state carried into the login.
// Login accepts either the username or the email.
type LoginRequest struct {
	Login    string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`

	// SessionID is the anonymous session being upgraded, if any.
	SessionID string `json:"-"`
	// CartCookie is the raw cart cookie merged into the session cart.
	CartCookie string `json:"-"`
}

// LoginResponse contains the bound session, the bearer token and the merged cart.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	SessionID   string         `json:"-"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *users.UserDTO `json:"user"`
	Cart        cart.Cart      `json:"-"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ForgotPasswordResponse always carries the same message. ResetURL is only set when the
// email belongs to an account; there is no mail delivery, so callers surface it directly.
type ForgotPasswordResponse struct {
	Message  string `json:"message"`
	ResetURL string `json:"reset_url,omitempty"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}
