package controllers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/auctions"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	bidHistoryLimit = 50

	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

type placeBidRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}

// AuctionList shows active auctions. Filters: category, boat=1, ending=soon.
func AuctionList(svc auctions.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := svc.ListActive(r.Context(), auctions.ListFilter{
			Category:   strings.TrimSpace(q.Get("category")),
			BoatsOnly:  validators.IsChecked(q.Get("boat")),
			EndingSoon: strings.EqualFold(q.Get("ending"), "soon"),
		})
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "auctions", page)
	}
}

// AuctionBids returns the bid history of one auction, highest first.
func AuctionBids(svc auctions.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", bidHistoryLimit, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		bids, err := svc.History(r.Context(), productID, limit)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "bids": bids})
	}
}

// AuctionPlaceBid places a bid. Form posts enter the amount in dollars.
func AuctionPlaceBid(svc auctions.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/auctions", err)
			return
		}
		back := "/products/" + productID.String()
		bidderID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}

		var req placeBidRequest
		var formErr error
		if err := validators.DecodeRequest(r, &req, func(form url.Values) {
			var cents *int64
			cents, formErr = validators.FormCents(form, "amount")
			if cents != nil {
				req.AmountCents = *cents
			}
		}); err != nil {
			pages.fail(w, r, back, err)
			return
		}
		if formErr != nil {
			pages.fail(w, r, back, formErr)
			return
		}

		result, err := svc.PlaceBid(r.Context(), productID, bidderID, req.AmountCents)
		if err != nil {
			pages.fail(w, r, back, err)
			return
		}
		if responses.WantsJSON(r) {
			responses.WriteSuccessStatus(w, http.StatusCreated, result)
			return
		}
		pages.done(w, r, back, result, result.Message)
	}
}

// AuctionEnd lets the seller close their auction early.
func AuctionEnd(svc auctions.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			pages.fail(w, r, "/my-listings", err)
			return
		}
		requesterID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		result, err := svc.EndAuction(r.Context(), productID, requesterID)
		if err != nil {
			pages.fail(w, r, "/products/"+productID.String(), err)
			return
		}
		pages.done(w, r, "/products/"+productID.String(), result, result.Message)
	}
}

// MyBids shows the signed-in user's bids and the auctions they are winning.
func MyBids(svc auctions.Service, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			pages.fail(w, r, "/login", err)
			return
		}
		bids, err := svc.MyBids(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		pages.render(w, r, "my_bids", bids)
	}
}

// NewLiveUpgrader accepts websocket handshakes from this host and the configured origins.
func NewLiveUpgrader(origins []string) *websocket.Upgrader {
	allowed := map[string]struct{}{}
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		},
	}
}

// AuctionLive streams bid events for one auction over a websocket until the client leaves.
func AuctionLive(hub *auctions.Hub, upgrader *websocket.Upgrader, pages Pages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), pages.Logger, w, err)
			return
		}
		if hub == nil {
			responses.WriteError(r.Context(), pages.Logger, w, pkgerrors.New(pkgerrors.CodeDependency, "live bidding unavailable"))
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered the client
			return
		}
		defer conn.Close()

		events, cancel := hub.Subscribe(productID)
		defer cancel()

		// the client never sends anything meaningful; reading detects close and pongs
		closed := make(chan struct{})
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(livePingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case event, ok := <-events:
				if !ok {
					// dropped as a slow subscriber
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "lagging"), time.Now().Add(liveWriteWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
				if err := conn.WriteJSON(event); err != nil {
					return
				}
				if event.Ended {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "auction ended"), time.Now().Add(liveWriteWait))
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
