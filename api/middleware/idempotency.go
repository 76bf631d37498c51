package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	bidReplayWindow   = 24 * time.Hour
	orderReplayWindow = 7 * 24 * time.Hour

	idempotencyHeader = "Idempotency-Key"
	maxKeyLength      = 128
)

// replayWindows lists the mutations that honour Idempotency-Key, keyed by method and chi
// route pattern.
var replayWindows = map[string]time.Duration{
	http.MethodPost + " /checkout":                   orderReplayWindow,
	http.MethodPost + " /auctions/{productId}/bids": bidReplayWindow,
}

var errKeyInFlight = pkgerrors.New(pkgerrors.CodeConflict, "This request is still being processed. Please wait a moment.")

// savedResponse is what a key resolves to once the first attempt finished. A claim
// placeholder has InFlight set and no status.
type savedResponse struct {
	InFlight    bool              `json:"in_flight,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status,omitempty"`
	Header      map[string]string `json:"header,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

// Idempotency makes checkout and bid submissions safe to retry. Requests carrying an
// Idempotency-Key are answered once; repeats with the same body get the saved response and
// repeats with a different body are rejected. 5xx outcomes are not saved.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	guard := &idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guard.serve(w, r, next)
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	window, guarded := routeTTL(r.Method, routePattern(r))
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if !guarded || g.store == nil || clientKey == "" {
		next.ServeHTTP(w, r)
		return
	}
	if len(clientKey) > maxKeyLength {
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key is too long."))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		g.fail(w, r, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "We could not read your request."))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := fingerprintBody(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	saved, err := g.lookup(ctx, key)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if saved != nil {
		g.replay(w, r, saved, fingerprint)
		return
	}

	if err := g.claim(ctx, key, fingerprint, window); err != nil {
		g.fail(w, r, err)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	g.settle(ctx, key, fingerprint, window, capture)
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*savedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
	case raw == "":
		return nil, nil
	}
	var saved savedResponse
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &saved, nil
}

func (g *idempotencyGuard) claim(ctx context.Context, key, fingerprint string, window time.Duration) error {
	placeholder, _ := json.Marshal(savedResponse{InFlight: true, Fingerprint: fingerprint})
	won, err := g.store.SetNX(ctx, key, string(placeholder), window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !won {
		return errKeyInFlight
	}
	return nil
}

// settle swaps the in-flight placeholder for the finished response, or drops it when the
// attempt failed server side.
func (g *idempotencyGuard) settle(ctx context.Context, key, fingerprint string, window time.Duration, capture *responseCapture) {
	ctx = context.WithoutCancel(ctx)
	if err := g.store.Del(ctx, key); err != nil {
		g.logError(ctx, "release idempotency claim", err)
		return
	}
	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		return
	}

	saved := savedResponse{Fingerprint: fingerprint, Status: status, Body: capture.body.Bytes()}
	for _, name := range []string{"Content-Type", "Location"} {
		if v := capture.Header().Get(name); v != "" {
			if saved.Header == nil {
				saved.Header = make(map[string]string, 2)
			}
			saved.Header[name] = v
		}
	}
	payload, err := json.Marshal(saved)
	if err != nil {
		g.logError(ctx, "encode idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(payload), window); err != nil {
		g.logError(ctx, "save idempotency record", err)
	}
}

func (g *idempotencyGuard) replay(w http.ResponseWriter, r *http.Request, saved *savedResponse, fingerprint string) {
	switch {
	case saved.Fingerprint != fingerprint:
		g.fail(w, r, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key was already used for a different request."))
		return
	case saved.InFlight:
		g.fail(w, r, errKeyInFlight)
		return
	}
	if g.logg != nil {
		g.logg.Info(g.logg.WithField(r.Context(), "replayed_status", saved.Status), "idempotent response replayed")
	}
	for name, value := range saved.Header {
		w.Header().Set(name, value)
	}
	w.WriteHeader(saved.Status)
	_, _ = w.Write(saved.Body)
}

func (g *idempotencyGuard) fail(w http.ResponseWriter, r *http.Request, err error) {
	responses.WriteError(r.Context(), g.logg, w, err)
}

func (g *idempotencyGuard) logError(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// requestScope binds a key to the shopper that sent it, so two browsers cannot collide on
// the same client generated key.
func requestScope(r *http.Request) string {
	ctx := r.Context()
	return strings.Join([]string{SessionIDFromContext(ctx), UserIDFromContext(ctx), r.Method, r.URL.Path}, "|")
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	window, ok := replayWindows[method+" "+strings.TrimSuffix(pattern, "/")]
	return window, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
