package auth

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Anchor#2024"

type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*session.Session
	destroyed []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*session.Session)}
}

func (f *fakeSessions) Load(ctx context.Context, sessionID string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (f *fakeSessions) Login(ctx context.Context, previous *session.Session, identity session.Identity) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID := identity.UserID
	next := &session.Session{
		ID:       session.NewID(),
		UserID:   &userID,
		Username: identity.Username,
		IsAdmin:  identity.IsAdmin,
		IsSeller: identity.IsSeller,
	}
	if previous != nil {
		next.Cart = previous.Cart
		delete(f.sessions, previous.ID)
	}
	f.sessions[next.ID] = next
	return next, nil
}

func (f *fakeSessions) Destroy(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	f.destroyed = append(f.destroyed, sessionID)
	return nil
}

type fakeMerger struct {
	refs []cart.Ref
}

func (f *fakeMerger) Merge(ctx context.Context, ref cart.Ref) (cart.Cart, error) {
	f.refs = append(f.refs, ref)
	return cart.ParseCookie(ref.Cookie), nil
}

type authFixture struct {
	client   *db.Client
	sessions *fakeSessions
	merger   *fakeMerger
	jwtCfg   config.JWTConfig
	register RegisterService
	svc      Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	client := dbtest.Open(t)
	f := &authFixture{
		client:   client,
		sessions: newFakeSessions(),
		merger:   &fakeMerger{},
		jwtCfg:   config.JWTConfig{Secret: "test-secret", Issuer: "storefront", ExpirationMinutes: 30},
	}

	register, err := NewRegisterService(RegisterServiceParams{DB: client})
	require.NoError(t, err)
	f.register = register

	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(client.DB()),
		SessionManager: f.sessions,
		Carts:          f.merger,
		JWTConfig:      f.jwtCfg,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  RegisterRequest
		msg  string
	}{
		{"short username", RegisterRequest{Username: "ab", Email: "ab@example.com", Password: strongPassword}, "Username must be at least 3 characters"},
		{"bad email", RegisterRequest{Username: "skipper", Email: "not-an-email", Password: strongPassword}, "Please enter a valid email address"},
		{"weak password", RegisterRequest{Username: "skipper", Email: "skipper@example.com", Password: "password"}, "Password must be at least 8 characters and include an uppercase letter, a lowercase letter, a number, and a special character."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.register.Register(ctx, tc.req)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
			require.Equal(t, tc.msg, pkgerrors.PublicMessage(err))
		})
	}
}

func TestRegisterCreatesAccountAndRejectsDuplicates(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.register.Register(ctx, RegisterRequest{Username: " skipper ", Email: "Skipper@Example.com", Password: strongPassword})
	require.NoError(t, err)
	require.Equal(t, "skipper", user.Username)
	require.Equal(t, "skipper@example.com", user.Email)
	require.False(t, user.IsAdmin)
	require.False(t, user.IsSeller)

	_, err = f.register.Register(ctx, RegisterRequest{Username: "skipper", Email: "other@example.com", Password: strongPassword})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, "Username or email already exists", pkgerrors.PublicMessage(err))

	_, err = f.register.Register(ctx, RegisterRequest{Username: "another", Email: "SKIPPER@example.com", Password: strongPassword})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestProvisionPresetsRoleFlags(t *testing.T) {
	client := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: client})
	require.NoError(t, err)

	user, err := svc.Provision(context.Background(), RegisterRequest{
		Username: "harbormaster",
		Email:    "hm@example.com",
		Password: strongPassword,
	}, Roles{Admin: true, Seller: true})
	require.NoError(t, err)
	require.True(t, user.IsAdmin)
	require.True(t, user.IsSeller)

	shopper, err := svc.Register(context.Background(), RegisterRequest{Username: "deckhand", Email: "dh@example.com", Password: strongPassword})
	require.NoError(t, err)
	require.False(t, shopper.IsAdmin)
	require.False(t, shopper.IsSeller)
}

func TestLoginUpgradesSessionMergesCartAndMintsToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered, err := f.register.Register(ctx, RegisterRequest{Username: "skipper", Email: "skipper@example.com", Password: strongPassword})
	require.NoError(t, err)

	anonymous := &session.Session{ID: "visitor", Cart: map[string]int{uuid.NewString(): 1}}
	f.sessions.sessions[anonymous.ID] = anonymous

	productID := uuid.New()
	cookie, err := cart.Cart{productID: 2}.Encode()
	require.NoError(t, err)

	resp, err := f.svc.Login(ctx, LoginRequest{
		Login:      "skipper",
		Password:   strongPassword,
		SessionID:  "visitor",
		CartCookie: cookie,
	})
	require.NoError(t, err)
	require.NotEqual(t, "visitor", resp.SessionID)
	require.Equal(t, registered.ID, resp.User.ID)
	require.NotNil(t, resp.User.LastLoginAt)
	require.Equal(t, 2, resp.Cart[productID])

	_, stillThere := f.sessions.sessions["visitor"]
	require.False(t, stillThere)
	upgraded := f.sessions.sessions[resp.SessionID]
	require.NotNil(t, upgraded)
	require.Equal(t, anonymous.Cart, upgraded.Cart)

	require.Len(t, f.merger.refs, 1)
	require.Equal(t, cart.Ref{SessionID: resp.SessionID, Cookie: cookie}, f.merger.refs[0])

	claims, err := pkgAuth.ParseAccessToken(f.jwtCfg, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.SessionID, claims.SessionID())
	require.Equal(t, registered.ID, claims.UserID)
	require.Equal(t, "skipper", claims.Username)
}

func TestLoginAcceptsEmailAndRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.register.Register(ctx, RegisterRequest{Username: "skipper", Email: "skipper@example.com", Password: strongPassword})
	require.NoError(t, err)

	resp, err := f.svc.Login(ctx, LoginRequest{Login: "Skipper@Example.com", Password: strongPassword, SessionID: "expired"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)

	_, err = f.svc.Login(ctx, LoginRequest{Login: "skipper", Password: "Wrong#2024"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	require.Equal(t, "Invalid username or password", pkgerrors.PublicMessage(err))

	_, err = f.svc.Login(ctx, LoginRequest{Login: "nobody", Password: strongPassword})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.Login(ctx, LoginRequest{Login: "skipper"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLogoutDestroysSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.sessions.sessions["s-1"] = &session.Session{ID: "s-1"}
	require.NoError(t, f.svc.Logout(ctx, "s-1"))
	require.Equal(t, []string{"s-1"}, f.sessions.destroyed)

	require.NoError(t, f.svc.Logout(ctx, ""))
	require.Len(t, f.sessions.destroyed, 1)
}

func TestLoginUpgradesLegacyPasswordHash(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	legacy := &models.User{
		Username:     "oldsalt",
		Email:        "oldsalt@example.com",
		PasswordHash: "pbkdf2:sha256:1000$SaltySea$dd94ffd56ca4f7fa07193bf429c6c417a99847ef7bb939ac2bebb6fcb3aad868",
	}
	require.NoError(t, f.client.DB().WithContext(ctx).Create(legacy).Error)

	pwCfg := &config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(f.client.DB()),
		SessionManager: f.sessions,
		Carts:          f.merger,
		JWTConfig:      f.jwtCfg,
		PasswordConfig: pwCfg,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Login: "oldsalt", Password: "Anchor#42"})
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, f.client.DB().WithContext(ctx).First(&stored, "id = ?", legacy.ID).Error)
	require.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
	require.False(t, security.NeedsRehash(stored.PasswordHash, *pwCfg))

	_, err = svc.Login(ctx, LoginRequest{Login: "oldsalt", Password: "Anchor#42"})
	require.NoError(t, err)
}
