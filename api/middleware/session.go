package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// SessionStore loads and creates server-side sessions.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*session.Session, error)
	Create(ctx context.Context) (*session.Session, error)
}

// SessionCookies reads and writes the session id carried by the browser.
type SessionCookies interface {
	SessionID(r *http.Request) string
	SetSessionID(w http.ResponseWriter, r *http.Request, id string) error
}

// Session resolves the caller identity. A bearer token must name a live session through its
// jti; browsers are given a fresh anonymous session whenever theirs is missing or idled out.
func Session(cfg config.JWTConfig, store SessionStore, cookies SessionCookies, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				sess   *session.Session
				bearer bool
				err    error
			)
			if token := validators.BearerToken(r); token != "" {
				bearer = true
				sess, err = bearerSession(ctx, cfg, store, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
			} else {
				sess, err = cookieSession(w, r, store, cookies)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				// writing the cookie attaches the cookie registry to r; keep it for later flashes
				ctx = r.Context()
			}

			identity := Identity{
				SessionID: sess.ID,
				UserID:    sess.UserID,
				Username:  sess.Username,
				IsAdmin:   sess.IsAdmin,
				IsSeller:  sess.IsSeller,
				Bearer:    bearer,
			}
			ctx = WithIdentity(ctx, identity)

			if logg != nil {
				ctx = logg.WithSessionID(ctx, sess.ID)
				if identity.UserID != nil {
					ctx = logg.WithUserID(ctx, identity.UserID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerSession(ctx context.Context, cfg config.JWTConfig, store SessionStore, token string) (*session.Session, error) {
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if errors.Is(err, pkgAuth.ErrTokenExpired) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "Your session has expired. Please log in again.")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.SessionID() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	sess, err := store.Load(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Your session has expired. Please log in again.")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	if !sess.Authenticated() || *sess.UserID != claims.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return sess, nil
}

func cookieSession(w http.ResponseWriter, r *http.Request, store SessionStore, cookies SessionCookies) (*session.Session, error) {
	ctx := r.Context()
	if id := cookies.SessionID(r); id != "" {
		sess, err := store.Load(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
		}
	}
	sess, err := store.Create(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}
	if err := cookies.SetSessionID(w, r, sess.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write session cookie")
	}
	return sess, nil
}
