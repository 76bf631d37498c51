package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/cookies"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Pages is the response plumbing shared by handlers that serve both browsers and JSON
// clients: flashes and the cart cookie, optional HTML templates, and the request logger.
type Pages struct {
	Cookies  *cookies.Store
	Renderer responses.Renderer
	Logger   *logger.Logger
}

// Flasher is the cookie store as a flasher, or nil without one.
func (p Pages) Flasher() responses.Flasher {
	if p.Cookies == nil {
		return nil
	}
	return p.Cookies
}

func (p Pages) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	responses.Page(w, r, p.Logger, p.Renderer, name, data)
}

func (p Pages) done(w http.ResponseWriter, r *http.Request, redirectTo string, data any, message string) {
	responses.Done(w, r, p.Flasher(), redirectTo, data, message)
}

func (p Pages) fail(w http.ResponseWriter, r *http.Request, redirectTo string, err error) {
	responses.Fail(w, r, p.Logger, p.Flasher(), redirectTo, err)
}

func (p Pages) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	if p.Cookies != nil && message != "" {
		p.Cookies.AddFlash(w, r, category, message)
	}
}

func (p Pages) cartRef(r *http.Request) cart.Ref {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if p.Cookies == nil {
		return cart.Ref{SessionID: sessionID}
	}
	return p.Cookies.Ref(r, sessionID)
}

// saveCart mirrors the session cart into the cart cookie.
func (p Pages) saveCart(w http.ResponseWriter, r *http.Request, c cart.Cart) {
	if p.Cookies == nil {
		return
	}
	if err := p.Cookies.SetCart(w, c); err != nil && p.Logger != nil {
		p.Logger.Error(r.Context(), "write cart cookie", err)
	}
}

// currentUser is the logged-in user id. Routes behind RequireLogin never see the error.
func currentUser(r *http.Request) (uuid.UUID, error) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity.UserID == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Please log in to continue.")
	}
	return *identity.UserID, nil
}

// viewerID is the logged-in user id, or nil for anonymous visitors.
func viewerID(r *http.Request) *uuid.UUID {
	return middleware.IdentityFromContext(r.Context()).UserID
}
