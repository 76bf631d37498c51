package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics counts the business events operators watch most closely.
type StorefrontMetrics struct {
	ordersPlaced     prometheus.Counter
	orderRevenue     prometheus.Counter
	checkoutRejected *prometheus.CounterVec
	bidsPlaced       *prometheus.CounterVec
	auctionsClosed   *prometheus.CounterVec
	reviewsModerated *prometheus.CounterVec
	httpRequests     *prometheus.HistogramVec
}

// NewStorefrontMetrics registers the storefront counters on reg. A nil registerer yields
// a no-op recorder.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	m := &StorefrontMetrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders committed by checkout.",
		}),
		orderRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_order_revenue_cents_total",
			Help: "Sum of committed order totals in cents.",
		}),
		checkoutRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_rejected_total",
			Help: "Checkout attempts rejected before commit.",
		}, []string{"reason"}),
		bidsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_bids_total",
			Help: "Bid attempts by outcome.",
		}, []string{"outcome"}),
		auctionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_auctions_closed_total",
			Help: "Auctions closed by how they ended.",
		}, []string{"result"}),
		reviewsModerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_reviews_moderated_total",
			Help: "Review moderation decisions.",
		}, []string{"decision"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Time to serve a request, by route pattern and status class.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.ordersPlaced, m.orderRevenue, m.checkoutRejected, m.bidsPlaced, m.auctionsClosed, m.reviewsModerated, m.httpRequests)
	return m
}

// OrderPlaced records a committed order.
func (m *StorefrontMetrics) OrderPlaced(totalCents int64) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Inc()
	if totalCents > 0 {
		m.orderRevenue.Add(float64(totalCents))
	}
}

// CheckoutRejected records a checkout that failed validation or stock checks.
func (m *StorefrontMetrics) CheckoutRejected(reason string) {
	if m == nil || m.checkoutRejected == nil {
		return
	}
	m.checkoutRejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// BidPlaced records a bid attempt; outcome is e.g. "accepted" or "rejected".
func (m *StorefrontMetrics) BidPlaced(outcome string) {
	if m == nil || m.bidsPlaced == nil {
		return
	}
	m.bidsPlaced.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AuctionClosed records an auction ending; result is "sold", "unsold" or "buy_now".
func (m *StorefrontMetrics) AuctionClosed(result string) {
	if m == nil || m.auctionsClosed == nil {
		return
	}
	m.auctionsClosed.WithLabelValues(normalizeLabel(result)).Inc()
}

// ReviewModerated records an approve or reject decision.
func (m *StorefrontMetrics) ReviewModerated(decision string) {
	if m == nil || m.reviewsModerated == nil {
		return
	}
	m.reviewsModerated.WithLabelValues(normalizeLabel(decision)).Inc()
}

// RequestServed records one HTTP response. route is the chi pattern, never the raw path,
// and status is bucketed to its class ("2xx", "4xx").
func (m *StorefrontMetrics) RequestServed(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	class := strconv.Itoa(status/100) + "xx"
	m.httpRequests.WithLabelValues(method, route, class).Observe(elapsed.Seconds())
}
