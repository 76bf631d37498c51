package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	id := uuid.New()
	raw, err := Cart{id: 3}.Encode()
	require.NoError(t, err)
	require.JSONEq(t, `{"`+id.String()+`": 3}`, raw)
	require.Equal(t, Cart{id: 3}, ParseCookie(raw))
}

func TestParseCookieSkipsInvalidEntries(t *testing.T) {
	id := uuid.New()
	cart := ParseCookie(`{"` + id.String() + `": 0, "nope": 2}`)
	require.Empty(t, cart)
	require.Empty(t, ParseCookie(""))
	require.Empty(t, ParseCookie(`[1,2]`))
}

func TestCount(t *testing.T) {
	require.Equal(t, 5, Cart{uuid.New(): 2, uuid.New(): 3}.Count())
}

func TestParseCookieCapsLineQuantity(t *testing.T) {
	id := uuid.New()
	cart := ParseCookie(`{"` + id.String() + `": 1152921504606846976}`)
	require.Equal(t, Cart{id: MaxLineQuantity}, cart)
}
