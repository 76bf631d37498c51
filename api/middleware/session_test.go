package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60}

type memorySessions struct {
	data    map[string]*session.Session
	created int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{data: map[string]*session.Session{}}
}

func (m *memorySessions) Load(_ context.Context, id string) (*session.Session, error) {
	sess, ok := m.data[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (m *memorySessions) Create(context.Context) (*session.Session, error) {
	m.created++
	sess := &session.Session{ID: session.NewID()}
	m.data[sess.ID] = sess
	return sess, nil
}

type headerCookies struct {
	written string
}

func (h *headerCookies) SessionID(r *http.Request) string {
	return r.Header.Get("X-Test-Session")
}

func (h *headerCookies) SetSessionID(_ http.ResponseWriter, _ *http.Request, id string) error {
	h.written = id
	return nil
}

func captureIdentity(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) (Identity, *httptest.ResponseRecorder) {
	t.Helper()
	var got Identity
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return got, rec
}

func TestSessionCreatesAnonymousSessionForNewBrowsers(t *testing.T) {
	store := newMemorySessions()
	cookies := &headerCookies{}
	mw := Session(testJWT, store, cookies, nil)

	identity, rec := captureIdentity(t, mw, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, identity.SessionID)
	require.False(t, identity.Authenticated())
	require.Equal(t, identity.SessionID, cookies.written)
	require.Equal(t, 1, store.created)
}

func TestSessionReusesLiveCookieSession(t *testing.T) {
	store := newMemorySessions()
	userID := uuid.New()
	store.data["live"] = &session.Session{ID: "live", UserID: &userID, Username: "skipper", IsSeller: true}
	cookies := &headerCookies{}
	mw := Session(testJWT, store, cookies, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Test-Session", "live")
	identity, _ := captureIdentity(t, mw, req)
	require.Equal(t, "live", identity.SessionID)
	require.True(t, identity.Authenticated())
	require.Equal(t, userID, *identity.UserID)
	require.True(t, identity.IsSeller)
	require.False(t, identity.Bearer)
	require.Zero(t, store.created)
	require.Empty(t, cookies.written)
}

func TestSessionReplacesExpiredCookieSession(t *testing.T) {
	store := newMemorySessions()
	cookies := &headerCookies{}
	mw := Session(testJWT, store, cookies, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Test-Session", "idled-out")
	identity, _ := captureIdentity(t, mw, req)
	require.NotEqual(t, "idled-out", identity.SessionID)
	require.Equal(t, identity.SessionID, cookies.written)
}

func TestSessionBearerTokenResolvesItsSession(t *testing.T) {
	store := newMemorySessions()
	userID := uuid.New()
	store.data["jti-1"] = &session.Session{ID: "jti-1", UserID: &userID, Username: "skipper", IsAdmin: true}
	mw := Session(testJWT, store, &headerCookies{}, nil)

	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: userID, Username: "skipper", IsAdmin: true, SessionID: "jti-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/my-bids", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	identity, rec := captureIdentity(t, mw, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, identity.Bearer)
	require.True(t, identity.IsAdmin)
	require.Equal(t, "jti-1", identity.SessionID)
}

func TestSessionBearerTokenRejectedAfterLogout(t *testing.T) {
	store := newMemorySessions()
	mw := Session(testJWT, store, &headerCookies{}, nil)

	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Username: "skipper", SessionID: "gone"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/my-bids", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	_, rec := captureIdentity(t, mw, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, store.created)
}

func TestSessionRejectsInvalidBearerToken(t *testing.T) {
	mw := Session(testJWT, newMemorySessions(), &headerCookies{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	_, rec := captureIdentity(t, mw, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type recordingFlasher struct {
	messages []string
}

func (f *recordingFlasher) AddFlash(_ http.ResponseWriter, _ *http.Request, _ string, message string) {
	f.messages = append(f.messages, message)
}

func TestRequireLoginNegotiates(t *testing.T) {
	flasher := &recordingFlasher{}
	handler := RequireLogin(flasher, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("anonymous request must not reach handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
	require.Equal(t, []string{"Please log in to continue."}, flasher.messages)

	req = httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminAndSeller(t *testing.T) {
	userID := uuid.New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name     string
		mw       func(http.Handler) http.Handler
		identity Identity
		want     int
	}{
		{"admin allowed", RequireAdmin(nil, nil), Identity{UserID: &userID, IsAdmin: true}, http.StatusNoContent},
		{"admin forbidden", RequireAdmin(nil, nil), Identity{UserID: &userID, IsSeller: true}, http.StatusForbidden},
		{"admin anonymous", RequireAdmin(nil, nil), Identity{}, http.StatusUnauthorized},
		{"seller allowed", RequireSeller(nil, nil), Identity{UserID: &userID, IsSeller: true}, http.StatusNoContent},
		{"seller admin", RequireSeller(nil, nil), Identity{UserID: &userID, IsAdmin: true}, http.StatusNoContent},
		{"seller forbidden", RequireSeller(nil, nil), Identity{UserID: &userID}, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Accept", "application/json")
		req = req.WithContext(WithIdentity(req.Context(), tc.identity))
		rec := httptest.NewRecorder()
		tc.mw(ok).ServeHTTP(rec, req)
		require.Equal(t, tc.want, rec.Code, tc.name)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCSRFDisabledPassesThrough(t *testing.T) {
	mw := CSRF(config.SessionConfig{CSRFEnabled: false}, nil, nil, nil)
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/update", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFRejectsFormPostWithoutToken(t *testing.T) {
	cfg := config.SessionConfig{CSRFEnabled: true, CSRFKey: "0123456789abcdef0123456789abcdef"}
	mw := CSRF(cfg, nil, nil, nil)
	reached := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true }))

	req := httptest.NewRequest(http.MethodPost, "/cart/update", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.False(t, reached)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFSkipsBearerRequests(t *testing.T) {
	cfg := config.SessionConfig{CSRFEnabled: true, CSRFKey: "0123456789abcdef0123456789abcdef"}
	mw := CSRF(cfg, nil, nil, nil)
	reached := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true }))

	req := httptest.NewRequest(http.MethodPost, "/auctions/x/bids", nil)
	req.Header.Set("Authorization", "Bearer token")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, reached)
}
