package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// Identity is who is making the request, resolved from the session cookie or a bearer token.
// Every request through the session middleware has a SessionID; UserID is set once logged in.
type Identity struct {
	SessionID string
	UserID    *uuid.UUID
	Username  string
	IsAdmin   bool
	IsSeller  bool
	Bearer    bool
}

// Authenticated reports whether a user is logged in.
func (i Identity) Authenticated() bool {
	return i.UserID != nil
}

// WithIdentity stores the caller identity on the context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// IdentityFromContext returns the caller identity, or the zero Identity.
func IdentityFromContext(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(Identity); ok {
		return v
	}
	return Identity{}
}

func UserIDFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx).UserID; id != nil {
		return id.String()
	}
	return ""
}

func SessionIDFromContext(ctx context.Context) string {
	return IdentityFromContext(ctx).SessionID
}
