package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	redisclient "github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id is unknown or has idled out.
var ErrNotFound = errors.New("session not found")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Session is the server-side browsing state referenced by the session cookie or the
// bearer token's jti. Anonymous sessions carry only a cart.
type Session struct {
	ID        string         `json:"-"`
	UserID    *uuid.UUID     `json:"user_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	IsAdmin   bool           `json:"is_admin,omitempty"`
	IsSeller  bool           `json:"is_seller,omitempty"`
	Cart      map[string]int `json:"cart,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Authenticated reports whether a user is logged into the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != nil
}

// Identity is the user data copied into a session on login.
type Identity struct {
	UserID   uuid.UUID
	Username string
	IsAdmin  bool
	IsSeller bool
}

// Manager stores sessions in Redis with a sliding idle timeout.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
	now   func() time.Time
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.IdleTimeout <= 0 {
		return nil, fmt.Errorf("session idle timeout must be positive")
	}
	return &Manager{
		store: client,
		keyer: client,
		ttl:   cfg.IdleTimeout,
		now:   time.Now,
	}, nil
}

// IdleTimeout is the sliding expiry applied on every load and save.
func (m *Manager) IdleTimeout() time.Duration {
	return m.ttl
}

// Create starts a new anonymous session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	sess := &Session{ID: NewID(), CreatedAt: m.now().UTC()}
	if err := m.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load fetches a session and slides its idle expiry.
func (m *Manager) Load(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNotFound
	}
	key := m.keyer.SessionKey(sessionID)
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.ID = sessionID
	if _, err := m.store.Expire(ctx, key, m.ttl); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Save persists the session and resets its idle expiry.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if sess == nil || strings.TrimSpace(sess.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return m.store.Set(ctx, m.keyer.SessionKey(sess.ID), string(payload), m.ttl)
}

// Login binds identity to the session under a fresh id, keeping the cart, and deletes the
// previous record so a pre-login session id cannot be replayed.
func (m *Manager) Login(ctx context.Context, previous *Session, identity Identity) (*Session, error) {
	next := &Session{
		ID:        NewID(),
		UserID:    &identity.UserID,
		Username:  identity.Username,
		IsAdmin:   identity.IsAdmin,
		IsSeller:  identity.IsSeller,
		CreatedAt: m.now().UTC(),
	}
	if previous != nil {
		next.Cart = previous.Cart
	}
	if err := m.Save(ctx, next); err != nil {
		return nil, err
	}
	if previous != nil && previous.ID != "" {
		if err := m.store.Del(ctx, m.keyer.SessionKey(previous.ID)); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Destroy deletes the session record.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Del(ctx, m.keyer.SessionKey(sessionID))
}

// LoadCart returns the raw cart stored in the session.
func (m *Manager) LoadCart(ctx context.Context, sessionID string) (map[string]int, error) {
	sess, err := m.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Cart, nil
}

// SaveCart replaces the cart stored in the session.
func (m *Manager) SaveCart(ctx context.Context, sessionID string, cart map[string]int) error {
	sess, err := m.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Cart = cart
	return m.Save(ctx, sess)
}

// NewID produces an opaque session identifier, also used as the JWT jti.
func NewID() string {
	return uuid.NewString()
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) {
		return ErrNotFound
	}
	return err
}
