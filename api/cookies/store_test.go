package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(config.SessionConfig{
		HashKey:        "0123456789abcdef0123456789abcdef",
		CookieName:     "sf",
		CartCookieName: "cart",
	})
	require.NoError(t, err)
	return store
}

// carryCookies replays the last cookie written under each name, the way a browser would.
func carryCookies(from *httptest.ResponseRecorder, to *http.Request) {
	latest := map[string]*http.Cookie{}
	var order []string
	for _, c := range from.Result().Cookies() {
		if _, seen := latest[c.Name]; !seen {
			order = append(order, c.Name)
		}
		latest[c.Name] = c
	}
	for _, name := range order {
		to.AddCookie(latest[name])
	}
}

func TestNewRejectsShortKeys(t *testing.T) {
	_, err := New(config.SessionConfig{HashKey: "short"})
	require.Error(t, err)

	_, err = New(config.SessionConfig{HashKey: "0123456789abcdef0123456789abcdef", BlockKey: "odd"})
	require.Error(t, err)
}

func TestSessionIDRoundTrip(t *testing.T) {
	store := testStore(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, store.SessionID(r))
	require.NoError(t, store.SetSessionID(w, r, "abc123"))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	carryCookies(w, next)
	require.Equal(t, "abc123", store.SessionID(next))
}

func TestFlashesDrainOnce(t *testing.T) {
	store := testStore(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	store.AddFlash(w, r, "error", "Only 1 left of Kayak (you wanted 2).")
	store.AddFlash(w, r, "error", "Product Oar is no longer available.")

	page := httptest.NewRequest(http.MethodGet, "/cart", nil)
	carryCookies(w, page)
	pw := httptest.NewRecorder()
	flashes := store.Flashes(pw, page)
	require.Len(t, flashes, 2)
	require.Equal(t, Flash{Type: "error", Message: "Only 1 left of Kayak (you wanted 2)."}, flashes[0])

	again := httptest.NewRequest(http.MethodGet, "/cart", nil)
	carryCookies(pw, again)
	require.Empty(t, store.Flashes(httptest.NewRecorder(), again))
}

func TestCartCookieRoundTrip(t *testing.T) {
	store := testStore(t)
	id := uuid.New()

	w := httptest.NewRecorder()
	require.NoError(t, store.SetCart(w, cart.Cart{id: 2}))
	set := w.Result().Cookies()
	require.Len(t, set, 1)
	require.True(t, set[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, set[0].SameSite)
	require.Equal(t, 30*24*60*60, set[0].MaxAge)

	r := httptest.NewRequest(http.MethodGet, "/cart", nil)
	carryCookies(w, r)
	parsed := cart.ParseCookie(store.CartCookie(r))
	require.Equal(t, 2, parsed[id])
	require.Equal(t, "sid-1", store.Ref(r, "sid-1").SessionID)
}

func TestSetCartEmptyClearsCookie(t *testing.T) {
	store := testStore(t)
	w := httptest.NewRecorder()
	require.NoError(t, store.SetCart(w, cart.Cart{}))
	set := w.Result().Cookies()
	require.Len(t, set, 1)
	require.Equal(t, -1, set[0].MaxAge)
}
