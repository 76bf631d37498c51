package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int64{}
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

type authAttempt struct {
	path        string
	contentType string
	body        string
	remoteAddr  string
}

func (a authAttempt) request() *http.Request {
	req := httptest.NewRequest(http.MethodPost, a.path, strings.NewReader(a.body))
	req.Header.Set("Content-Type", a.contentType)
	req.RemoteAddr = a.remoteAddr
	return req
}

func jsonLogin(email, ip string) authAttempt {
	return authAttempt{
		path:        "/login",
		contentType: "application/json",
		body:        `{"email":"` + email + `","password":"Anchor#42"}`,
		remoteAddr:  ip + ":40000",
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestAuthRateLimitStatusSequence(t *testing.T) {
	tests := []struct {
		name     string
		policy   AuthRateLimitPolicy
		attempts []authAttempt
		want     []int
	}{
		{
			name:     "under both limits",
			policy:   NewAuthRateLimitPolicy("login", time.Minute, 5, 5),
			attempts: []authAttempt{jsonLogin("sailor@example.com", "10.0.0.1"), jsonLogin("sailor@example.com", "10.0.0.1")},
			want:     []int{http.StatusOK, http.StatusOK},
		},
		{
			name:   "account limit follows the email across addresses",
			policy: NewAuthRateLimitPolicy("login", time.Minute, 0, 2),
			attempts: []authAttempt{
				jsonLogin("target@example.com", "10.0.0.1"),
				jsonLogin("TARGET@example.com", "10.0.0.2"),
				jsonLogin("target@example.com", "10.0.0.3"),
			},
			want: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:   "ip limit spans accounts",
			policy: NewAuthRateLimitPolicy("register", time.Minute, 1, 0),
			attempts: []authAttempt{
				jsonLogin("one@example.com", "10.0.0.9"),
				jsonLogin("two@example.com", "10.0.0.9"),
			},
			want: []int{http.StatusOK, http.StatusTooManyRequests},
		},
		{
			name:     "disabled policy never counts",
			policy:   NewAuthRateLimitPolicy("login", 0, 1, 1),
			attempts: []authAttempt{jsonLogin("a@example.com", "10.0.0.1"), jsonLogin("a@example.com", "10.0.0.1")},
			want:     []int{http.StatusOK, http.StatusOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthRateLimit(tt.policy, &countingLimiter{}, nil, nil)(okHandler())
			var got []int
			for _, attempt := range tt.attempts {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, attempt.request())
				got = append(got, rec.Code)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAuthRateLimitRejectionCarriesRetryAfter(t *testing.T) {
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 1, 0), &countingLimiter{}, nil, nil)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), jsonLogin("x@example.com", "10.1.1.1").request())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, jsonLogin("x@example.com", "10.1.1.1").request())

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, string(pkgerrors.CodeRateLimit), payload.Error.Code)
}

func TestAuthRateLimitRestoresBodyForHandler(t *testing.T) {
	var seen string
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 5, 5), &countingLimiter{}, nil, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seen = string(body)
		}),
	)
	attempt := jsonLogin("deck@example.com", "10.2.2.2")
	handler.ServeHTTP(httptest.NewRecorder(), attempt.request())
	require.Equal(t, attempt.body, seen)
}

func TestAuthRateLimitHashesFormUsername(t *testing.T) {
	limiter := &countingLimiter{}
	handler := AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 1), limiter, nil, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "Skipper", r.PostForm.Get("username"))
			w.WriteHeader(http.StatusOK)
		}),
	)

	form := authAttempt{
		path:        "/login",
		contentType: "application/x-www-form-urlencoded",
		body:        "username=Skipper&password=secret",
		remoteAddr:  "9.9.9.9:1",
	}
	var codes []int
	for i := 0; i < 2; i++ {
		req := form.request()
		req.Header.Set("Referer", "/login")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if i == 1 {
			require.Equal(t, "/login", rec.Header().Get("Location"))
		}
	}
	require.Equal(t, []int{http.StatusOK, http.StatusSeeOther}, codes)

	require.Len(t, limiter.counts, 1)
	for scope := range limiter.counts {
		require.True(t, strings.HasPrefix(scope, "login:account:"), scope)
		require.NotContains(t, strings.ToLower(scope), "skipper")
	}
}
