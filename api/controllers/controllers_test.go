package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/cookies"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auctions"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

func testPages(t *testing.T) Pages {
	t.Helper()
	store, err := cookies.New(config.SessionConfig{HashKey: "0123456789abcdef0123456789abcdef"})
	require.NoError(t, err)
	return Pages{Cookies: store}
}

// withRoute attaches chi URL params and a caller identity to req.
func withRoute(req *http.Request, identity middleware.Identity, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithIdentity(ctx, identity)
	return req.WithContext(ctx)
}

func member(id uuid.UUID) middleware.Identity {
	return middleware.Identity{SessionID: "sid-1", UserID: &id, Username: "buyer"}
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

type stubCart struct {
	cart.Service
	addQty     int
	addResult  *cart.AddResult
	updated    map[uuid.UUID]int
	updateResp *cart.UpdateResult
}

func (s *stubCart) Add(_ context.Context, _ cart.Ref, _ uuid.UUID, qty int) (*cart.AddResult, error) {
	s.addQty = qty
	return s.addResult, nil
}

func (s *stubCart) Update(_ context.Context, _ cart.Ref, quantities map[uuid.UUID]int) (*cart.UpdateResult, error) {
	s.updated = quantities
	return s.updateResp, nil
}

func TestCartAddFormRedirectsAndMirrorsCookie(t *testing.T) {
	productID := uuid.New()
	svc := &stubCart{addResult: &cart.AddResult{Cart: cart.Cart{productID: 2}, Added: 2, Requested: 2, Message: "Added to cart."}}

	req := formRequest(http.MethodPost, "/cart/add/"+productID.String(), url.Values{"quantity": {"2"}, "next": {"/products"}})
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, map[string]string{"productId": productID.String()})
	w := httptest.NewRecorder()
	CartAdd(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/products", w.Header().Get("Location"))
	require.Equal(t, 2, svc.addQty)
	c := cookieNamed(w, "cart")
	require.NotNil(t, c)
	require.True(t, c.HttpOnly)
}

func TestCartAddIgnoresOffsiteNext(t *testing.T) {
	productID := uuid.New()
	svc := &stubCart{addResult: &cart.AddResult{Cart: cart.Cart{productID: 1}, Added: 1, Requested: 1}}

	req := formRequest(http.MethodPost, "/cart/add/x", url.Values{"next": {"//evil.example"}})
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, map[string]string{"productId": productID.String()})
	w := httptest.NewRecorder()
	CartAdd(svc, testPages(t))(w, req)

	require.Equal(t, "/cart", w.Header().Get("Location"))
	require.Equal(t, 1, svc.addQty)
}

func TestCartAddJSONReportsPartialAdd(t *testing.T) {
	productID := uuid.New()
	svc := &stubCart{addResult: &cart.AddResult{
		Cart: cart.Cart{productID: 3}, Added: 1, Requested: 3,
		Message: "Only 1 items were added due to limited stock.",
	}}

	req := jsonRequest(http.MethodPost, "/cart/add/x", `{"quantity":3}`)
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, map[string]string{"productId": productID.String()})
	w := httptest.NewRecorder()
	CartAdd(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data cart.AddResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, 1, body.Data.Added)
	require.Equal(t, 3, body.Data.Requested)
}

func TestCartUpdateReadsQuantityFields(t *testing.T) {
	keep, drop := uuid.New(), uuid.New()
	svc := &stubCart{updateResp: &cart.UpdateResult{Cart: cart.Cart{keep: 4}}}

	req := formRequest(http.MethodPost, "/cart/update", url.Values{
		"qty_" + keep.String(): {"4"},
		"qty_" + drop.String(): {"0"},
		"gorilla.csrf.Token":   {"ignored"},
	})
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, nil)
	w := httptest.NewRecorder()
	CartUpdate(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, map[uuid.UUID]int{keep: 4, drop: 0}, svc.updated)
}

func TestCartUpdateRejectsUnknownLine(t *testing.T) {
	svc := &stubCart{}
	req := jsonRequest(http.MethodPost, "/cart/update", `{"quantities":{"not-a-uuid":1}}`)
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, nil)
	w := httptest.NewRecorder()
	CartUpdate(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, svc.updated)
}

type stubCheckout struct {
	checkout.Service
	input checkout.PlaceOrderInput
	order *orders.OrderDTO
	err   error
}

func (s *stubCheckout) PlaceOrder(_ context.Context, input checkout.PlaceOrderInput) (*orders.OrderDTO, error) {
	s.input = input
	return s.order, s.err
}

func TestCheckoutPlaceOrderClearsCartCookie(t *testing.T) {
	buyer := uuid.New()
	order := &orders.OrderDTO{ID: uuid.New(), BuyerName: "Ana"}
	svc := &stubCheckout{order: order}

	req := jsonRequest(http.MethodPost, "/checkout", `{"name":"Ana","email":"ana@example.com","address":"1 Dock St"}`)
	req = withRoute(req, member(buyer), nil)
	w := httptest.NewRecorder()
	CheckoutPlaceOrder(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "1 Dock St", svc.input.ShippingAddress)
	require.Equal(t, buyer, *svc.input.BuyerID)
	require.Equal(t, "sid-1", svc.input.Ref.SessionID)
	c := cookieNamed(w, "cart")
	require.NotNil(t, c)
	require.Equal(t, -1, c.MaxAge)
}

func TestCheckoutStockConflictSendsFormClientsToCart(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeStateConflict, "Some items are unavailable.").
		WithDetails(map[string]any{pkgerrors.LinesDetail: []string{"Only 1 left of Kayak (you wanted 2)."}})}

	req := formRequest(http.MethodPost, "/checkout", url.Values{
		"name": {"Ana"}, "email": {"ana@example.com"}, "address": {"1 Dock St"},
	})
	req = withRoute(req, member(uuid.New()), nil)
	w := httptest.NewRecorder()
	CheckoutPlaceOrder(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/cart", w.Header().Get("Location"))
	require.Nil(t, cookieNamed(w, "cart"))
}

func TestCheckoutValidatesForm(t *testing.T) {
	svc := &stubCheckout{}
	req := jsonRequest(http.MethodPost, "/checkout", `{"name":"Ana","email":"nope","address":""}`)
	req = withRoute(req, member(uuid.New()), nil)
	w := httptest.NewRecorder()
	CheckoutPlaceOrder(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, svc.input.BuyerEmail)
}

type stubAuctions struct {
	auctions.Service
	amount int64
	bidder uuid.UUID
	err    error
}

func (s *stubAuctions) PlaceBid(_ context.Context, productID, bidderID uuid.UUID, amount int64) (*auctions.BidResult, error) {
	s.amount = amount
	s.bidder = bidderID
	if s.err != nil {
		return nil, s.err
	}
	return &auctions.BidResult{Bid: auctions.BidDTO{ProductID: productID, AmountCents: amount}, Message: "Bid placed successfully!"}, nil
}

func TestPlaceBidParsesDollarForm(t *testing.T) {
	productID, bidder := uuid.New(), uuid.New()
	svc := &stubAuctions{}

	req := formRequest(http.MethodPost, "/auctions/x/bids", url.Values{"amount": {"12.50"}})
	req = withRoute(req, member(bidder), map[string]string{"productId": productID.String()})
	w := httptest.NewRecorder()
	AuctionPlaceBid(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/products/"+productID.String(), w.Header().Get("Location"))
	require.EqualValues(t, 1250, svc.amount)
	require.Equal(t, bidder, svc.bidder)
}

func TestPlaceBidJSONSurfacesBidTooLow(t *testing.T) {
	svc := &stubAuctions{err: pkgerrors.New(pkgerrors.CodeValidation, "Bid must be at least $15.00")}

	req := jsonRequest(http.MethodPost, "/auctions/x/bids", `{"amount_cents":1000}`)
	req = withRoute(req, member(uuid.New()), map[string]string{"productId": uuid.NewString()})
	w := httptest.NewRecorder()
	AuctionPlaceBid(svc, testPages(t))(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "Bid must be at least $15.00", body.Error.Message)
}

func TestPlaceBidRequiresLogin(t *testing.T) {
	svc := &stubAuctions{}
	req := formRequest(http.MethodPost, "/auctions/x/bids", url.Values{"amount": {"20"}})
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, map[string]string{"productId": uuid.NewString()})
	w := httptest.NewRecorder()
	AuctionPlaceBid(svc, testPages(t))(w, req)

	require.Equal(t, "/login", w.Header().Get("Location"))
	require.Zero(t, svc.amount)
}

func TestAuctionLiveStreamsBidEvents(t *testing.T) {
	hub := auctions.NewHub()
	productID := uuid.New()

	router := chi.NewRouter()
	router.Get("/auctions/{productId}/live", AuctionLive(hub, NewLiveUpgrader(nil), Pages{}))
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/auctions/" + productID.String() + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(productID) == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(auctions.BidEvent{ProductID: productID, AmountCents: 2500, Amount: "$25.00"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event auctions.BidEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.EqualValues(t, 2500, event.AmountCents)
	require.Equal(t, productID, event.ProductID)
}

func TestLiveUpgraderOrigins(t *testing.T) {
	upgrader := NewLiveUpgrader([]string{"https://shop.example/"})
	req := httptest.NewRequest(http.MethodGet, "http://api.internal/auctions/x/live", nil)

	req.Header.Set("Origin", "https://shop.example")
	require.True(t, upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "http://api.internal")
	require.True(t, upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	require.False(t, upgrader.CheckOrigin(req))
}

type stubProducts struct {
	product.Service
	viewed []uuid.UUID
}

func (s *stubProducts) Detail(_ context.Context, id uuid.UUID, _ *uuid.UUID) (*product.DetailDTO, error) {
	return &product.DetailDTO{Product: product.ProductDTO{ID: id, Title: "Kayak"}}, nil
}

func (s *stubProducts) RecordView(_ context.Context, _ *uuid.UUID, id uuid.UUID) error {
	s.viewed = append(s.viewed, id)
	return nil
}

func TestProductDetailRecordsView(t *testing.T) {
	svc := &stubProducts{}
	productID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/products/"+productID.String(), nil)
	req = withRoute(req, member(uuid.New()), map[string]string{"productId": productID.String()})
	w := httptest.NewRecorder()
	ProductDetail(svc, Pages{})(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []uuid.UUID{productID}, svc.viewed)
}

func TestProductDetailUnknownIDIsNotFound(t *testing.T) {
	svc := &stubProducts{}
	req := httptest.NewRequest(http.MethodGet, "/products/abc", nil)
	req = withRoute(req, middleware.Identity{}, map[string]string{"productId": "abc"})
	w := httptest.NewRecorder()
	ProductDetail(svc, Pages{})(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, svc.viewed)
}

type stubLogin struct {
	auth.Service
	req auth.LoginRequest
}

func (s *stubLogin) Login(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.req = req
	if req.Password != "Sailboat#1" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid username or password")
	}
	return &auth.LoginResponse{
		AccessToken: "token",
		SessionID:   "sid-2",
		User:        &users.UserDTO{Username: req.Login},
		Cart:        cart.Cart{uuid.New(): 1},
	}, nil
}

func TestLoginRotatesSessionCookie(t *testing.T) {
	pages := testPages(t)
	svc := &stubLogin{}

	req := formRequest(http.MethodPost, "/login?next=/checkout", url.Values{"username": {"ana"}, "password": {"Sailboat#1"}})
	req.AddCookie(&http.Cookie{Name: "cart", Value: url.QueryEscape(`{"x":1}`)})
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, nil)
	w := httptest.NewRecorder()
	Login(svc, pages)(w, req)

	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/checkout", w.Header().Get("Location"))
	require.Equal(t, "sid-1", svc.req.SessionID)
	require.Equal(t, `{"x":1}`, svc.req.CartCookie)
	require.NotNil(t, cookieNamed(w, "cart"))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		next.AddCookie(c)
	}
	require.Equal(t, "sid-2", pages.Cookies.SessionID(next))
}

func TestLoginBadPasswordJSON(t *testing.T) {
	req := jsonRequest(http.MethodPost, "/login", `{"username":"ana","password":"nope"}`)
	req = withRoute(req, middleware.Identity{SessionID: "sid-1"}, nil)
	w := httptest.NewRecorder()
	Login(&stubLogin{}, testPages(t))(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) ExportXLSX(_ context.Context, w io.Writer) error {
	_, err := w.Write([]byte("PK"))
	return err
}

func TestAdminOrdersExportIsAttachment(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/orders/export", nil)
	w := httptest.NewRecorder()
	AdminOrdersExport(stubOrders{}, Pages{})(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "orders.xlsx")
	require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": up, "redis": up})(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": up, "redis": down})(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "test", w.Header().Get("X-Storefront-Env"))
}
