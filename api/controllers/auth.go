package controllers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func passwordMismatch() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "New passwords do not match.")
}

// nextParam is the post-login destination carried by the form or the query string.
func nextParam(r *http.Request) string {
	next := r.URL.Query().Get("next")
	if r.PostForm != nil && r.PostForm.Get("next") != "" {
		next = r.PostForm.Get("next")
	}
	return safeNext(next, "/")
}

// AuthPage renders a static auth form such as login or register.
func AuthPage(name string, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages.render(w, r, name, map[string]string{"next": r.URL.Query().Get("next")})
	}
}

// startSession logs the user in: the session cookie follows the rotated session and the
// cart cookie mirrors the merged cart.
func startSession(svc auth.Service, pages Pages, w http.ResponseWriter, r *http.Request, login, password string) (*auth.LoginResponse, error) {
	req := auth.LoginRequest{
		Login:     login,
		Password:  password,
		SessionID: middleware.SessionIDFromContext(r.Context()),
	}
	if pages.Cookies != nil {
		req.CartCookie = pages.Cookies.CartCookie(r)
	}
	resp, err := svc.Login(r.Context(), req)
	if err != nil {
		return nil, err
	}
	if pages.Cookies != nil {
		if err := pages.Cookies.SetSessionID(w, r, resp.SessionID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write session cookie")
		}
	}
	pages.saveCart(w, r, resp.Cart)
	return resp, nil
}

// Login accepts a username or email with a password.
func Login(svc auth.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Login = validators.SanitizeString(form.Get("username"), 254)
			req.Password = form.Get("password")
		}); err != nil {
			pages.fail(w, r, "/login", err)
			return
		}

		resp, err := startSession(svc, pages, w, r, req.Login, req.Password)
		if err != nil {
			// Fail would bounce UNAUTHORIZED to /login anyway; keep the next target
			pages.fail(w, r, "/login?next="+url.QueryEscape(nextParam(r)), err)
			return
		}
		pages.done(w, r, nextParam(r), resp, "Logged in.")
	}
}

// Register creates an account and logs it in.
func Register(registerSvc auth.RegisterService, loginSvc auth.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Username = validators.SanitizeString(form.Get("username"), 80)
			req.Email = validators.SanitizeString(form.Get("email"), 254)
			req.Password = form.Get("password")
		}); err != nil {
			pages.fail(w, r, "/register", err)
			return
		}

		if _, err := registerSvc.Register(r.Context(), req); err != nil {
			pages.fail(w, r, "/register", err)
			return
		}
		resp, err := startSession(loginSvc, pages, w, r, req.Username, req.Password)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		if responses.WantsJSON(r) {
			responses.WriteSuccessStatus(w, http.StatusCreated, resp)
			return
		}
		pages.done(w, r, nextParam(r), resp, "Registered and logged in.")
	}
}

// Logout revokes the server-side session. The cart cookie survives so the visitor keeps
// their cart.
func Logout(svc auth.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
			pages.fail(w, r, "/", err)
			return
		}
		if pages.Cookies != nil {
			if err := pages.Cookies.ClearSessionID(w, r); err != nil && pages.Logger != nil {
				pages.Logger.Error(r.Context(), "clear session cookie", err)
			}
		}
		pages.done(w, r, "/", map[string]bool{"logged_out": true}, "Logged out.")
	}
}

// PasswordForgot starts a reset. Without mail delivery the reset link is flashed to the
// visitor when the email matches an account.
func PasswordForgot(svc auth.PasswordResetService, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.ForgotPasswordRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Email = validators.SanitizeString(form.Get("email"), 254)
		}); err != nil {
			pages.fail(w, r, "/password/forgot", err)
			return
		}
		resp, err := svc.RequestReset(r.Context(), req)
		if err != nil {
			pages.fail(w, r, "/password/forgot", err)
			return
		}
		if responses.WantsJSON(r) {
			responses.WriteSuccess(w, resp)
			return
		}
		message := resp.Message
		if resp.ResetURL != "" {
			message = "Password reset link: " + resp.ResetURL
		}
		pages.flash(w, r, responses.FlashInfo, message)
		responses.Redirect(w, r, "/login")
	}
}

// PasswordResetForm checks the token before showing the new-password form.
func PasswordResetForm(svc auth.PasswordResetService, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		if err := svc.ValidateToken(r.Context(), token); err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		pages.render(w, r, "reset_password", map[string]string{"token": token})
	}
}

// PasswordReset sets a new password and consumes the token.
func PasswordReset(svc auth.PasswordResetService, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		var req auth.ResetPasswordRequest
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			req.Password = form.Get("password")
		}); err != nil {
			pages.fail(w, r, "/password/reset/"+url.PathEscape(token), err)
			return
		}
		if err := svc.ResetPassword(r.Context(), token, req); err != nil {
			redirect := "/password/reset/" + url.PathEscape(token)
			if svc.ValidateToken(r.Context(), token) != nil {
				redirect = "/login"
			}
			pages.fail(w, r, redirect, err)
			return
		}
		pages.done(w, r, "/login", map[string]bool{"reset": true}, "Password reset successfully. Please log in.")
	}
}
