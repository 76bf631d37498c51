package auctions

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBuffer is how many events a live subscriber may fall behind before it is dropped.
const subscriberBuffer = 16

// BidEvent is pushed to live subscribers of an auction after a bid commits.
type BidEvent struct {
	ProductID       uuid.UUID `json:"product_id"`
	BidID           uuid.UUID `json:"bid_id"`
	Bidder          string    `json:"bidder,omitempty"`
	AmountCents     int64     `json:"amount_cents"`
	Amount          string    `json:"amount"`
	MinimumBidCents int64     `json:"minimum_bid_cents"`
	BuyNow          bool      `json:"buy_now"`
	Ended           bool      `json:"ended"`
	At              time.Time `json:"at"`
}

// Publisher receives committed bid events.
type Publisher interface {
	Publish(event BidEvent)
}

// Hub fans bid events out to in-process subscribers, keyed by product.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan BidEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]map[chan BidEvent]struct{})}
}

// Subscribe registers a listener for productID. The returned cancel func must be called
// once the listener is done; the channel is closed by cancel or when the hub drops a
// subscriber that stopped draining.
func (h *Hub) Subscribe(productID uuid.UUID) (<-chan BidEvent, func()) {
	ch := make(chan BidEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[productID]
	if !ok {
		set = make(map[chan BidEvent]struct{})
		h.subs[productID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { h.remove(productID, ch) })
	}
	return ch, cancel
}

// Publish delivers event without blocking.
func (h *Hub) Publish(event BidEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[event.ProductID] {
		select {
		case ch <- event:
		default:
			h.dropLocked(event.ProductID, ch)
		}
	}
}

// Subscribers returns the number of live listeners for productID.
func (h *Hub) Subscribers(productID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[productID])
}

func (h *Hub) remove(productID uuid.UUID, ch chan BidEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(productID, ch)
}

func (h *Hub) dropLocked(productID uuid.UUID, ch chan BidEvent) {
	set, ok := h.subs[productID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, productID)
	}
}
