package cookies

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/gorilla/sessions"
)

const (
	sessionIDKey = "sid"
	minKeyLength = 32
)

func init() {
	gob.Register(Flash{})
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Store reads and writes the browser cookies: the signed session cookie carrying the session
// id and flashes, and the plain cart cookie mirroring the session cart.
type Store struct {
	sessions *sessions.CookieStore
	name     string
	cartName string
	cartTTL  time.Duration
	secure   bool
}

// New builds the cookie store from session config. Keys shorter than 32 bytes are rejected.
func New(cfg config.SessionConfig) (*Store, error) {
	if len(cfg.HashKey) < minKeyLength {
		return nil, fmt.Errorf("session hash key must be at least %d bytes", minKeyLength)
	}
	keys := [][]byte{[]byte(cfg.HashKey)}
	if cfg.BlockKey != "" {
		switch len(cfg.BlockKey) {
		case 16, 24, 32:
			keys = append(keys, []byte(cfg.BlockKey))
		default:
			return nil, fmt.Errorf("session block key must be 16, 24 or 32 bytes")
		}
	}

	store := sessions.NewCookieStore(keys...)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.CookieSecure
	store.Options.SameSite = http.SameSiteLaxMode
	// the cookie outlives the idle timeout; Redis decides whether the session is still alive
	store.Options.MaxAge = int((24 * time.Hour).Seconds())

	name := cfg.CookieName
	if name == "" {
		name = "storefront_session"
	}
	cartName := cfg.CartCookieName
	if cartName == "" {
		cartName = "cart"
	}
	cartTTL := cfg.CartCookieTTL
	if cartTTL <= 0 {
		cartTTL = 30 * 24 * time.Hour
	}

	return &Store{
		sessions: store,
		name:     name,
		cartName: cartName,
		cartTTL:  cartTTL,
		secure:   cfg.CookieSecure,
	}, nil
}

func (s *Store) session(r *http.Request) *sessions.Session {
	// a tampered or stale cookie yields a fresh session
	sess, _ := s.sessions.Get(r, s.name)
	return sess
}

// SessionID is the server-side session id the browser holds, or "".
func (s *Store) SessionID(r *http.Request) string {
	id, _ := s.session(r).Values[sessionIDKey].(string)
	return id
}

// SetSessionID points the browser at a server-side session.
func (s *Store) SetSessionID(w http.ResponseWriter, r *http.Request, id string) error {
	sess := s.session(r)
	sess.Values[sessionIDKey] = id
	return sess.Save(r, w)
}

// ClearSessionID forgets the session id but keeps pending flashes.
func (s *Store) ClearSessionID(w http.ResponseWriter, r *http.Request) error {
	sess := s.session(r)
	delete(sess.Values, sessionIDKey)
	return sess.Save(r, w)
}

// AddFlash queues a flash message for the next page.
func (s *Store) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	sess := s.session(r)
	sess.AddFlash(Flash{Type: category, Message: message})
	_ = sess.Save(r, w)
}

// Flashes drains the queued flash messages.
func (s *Store) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess := s.session(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]Flash, 0, len(raw))
	for _, f := range raw {
		if fm, ok := f.(Flash); ok {
			out = append(out, fm)
		}
	}
	_ = sess.Save(r, w)
	return out
}

// CartCookie is the decoded cart cookie JSON, or "".
func (s *Store) CartCookie(r *http.Request) string {
	c, err := r.Cookie(s.cartName)
	if err != nil {
		return ""
	}
	// JSON quotes are not valid cookie octets, so the value travels query-escaped
	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return value
}

// Ref identifies the request's cart for the cart service.
func (s *Store) Ref(r *http.Request, sessionID string) cart.Ref {
	return cart.Ref{SessionID: sessionID, Cookie: s.CartCookie(r)}
}

// SetCart mirrors the cart into the cart cookie. An empty cart clears the cookie.
func (s *Store) SetCart(w http.ResponseWriter, c cart.Cart) error {
	if len(c) == 0 {
		s.ClearCart(w)
		return nil
	}
	encoded, err := c.Encode()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cartName,
		Value:    url.QueryEscape(encoded),
		Path:     "/",
		MaxAge:   int(s.cartTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCart expires the cart cookie.
func (s *Store) ClearCart(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cartName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
