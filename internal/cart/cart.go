package cart

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// MaxLineQuantity is the most units of one product a cart line may hold.
const MaxLineQuantity = 999

// Cart maps product ids to quantities. It is the value stored in the session and mirrored
// into the cart cookie.
type Cart map[uuid.UUID]int

// Ref identifies whose cart an operation touches: the server-side session and the raw
// cart cookie sent with the request.
type Ref struct {
	SessionID string
	Cookie    string
}

// Count is the total number of items in the cart.
func (c Cart) Count() int {
	total := 0
	for _, qty := range c {
		total += qty
	}
	return total
}

// ProductIDs returns the cart keys in a stable order.
func (c Cart) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	for id, qty := range c {
		out[id] = qty
	}
	return out
}

// Encode renders the cart as the JSON object written to the cart cookie.
func (c Cart) Encode() (string, error) {
	payload, err := json.Marshal(c.toRaw())
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// ParseCookie decodes a cart cookie. Malformed input yields an empty cart; entries with
// bad ids or non-positive quantities are skipped and larger ones are capped at
// MaxLineQuantity.
func ParseCookie(raw string) Cart {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cart{}
	}
	var decoded map[string]int
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Cart{}
	}
	return fromRaw(decoded)
}

func (c Cart) toRaw() map[string]int {
	out := make(map[string]int, len(c))
	for id, qty := range c {
		out[id.String()] = qty
	}
	return out
}

func fromRaw(raw map[string]int) Cart {
	out := make(Cart, len(raw))
	for key, qty := range raw {
		id, err := uuid.Parse(key)
		if err != nil || qty <= 0 {
			continue
		}
		out[id] = min(qty, MaxLineQuantity)
	}
	return out
}

// merge keeps the larger quantity for products present in both carts.
func merge(a, b Cart) Cart {
	out := a.clone()
	for id, qty := range b {
		if qty > out[id] {
			out[id] = qty
		}
	}
	return out
}
