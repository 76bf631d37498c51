package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// maxAuthBody caps how much of a login or register body is buffered to find the account.
const maxAuthBody = 64 << 10

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// AuthRateLimitPolicy throttles one auth surface (login, register) per client IP and per
// submitted account. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name         string
	window       time.Duration
	ipLimit      int64
	accountLimit int64
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, accountLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:         name,
		window:       window,
		ipLimit:      int64(ipLimit),
		accountLimit: int64(accountLimit),
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.accountLimit > 0)
}

// throttle is one counter checked for a request.
type throttle struct {
	dimension string
	subject   string
	limit     int64
}

func (p AuthRateLimitPolicy) scope(t throttle) string {
	return p.name + ":" + t.dimension + ":" + t.subject
}

// AuthRateLimit counts attempts in fixed windows. The account is the email, or failing
// that the username, found in a JSON or form body; it is hashed before it reaches Redis.
func AuthRateLimit(policy AuthRateLimitPolicy, store windowLimiter, flasher responses.Flasher, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var checks []throttle
			if ip := clientIP(r); policy.ipLimit > 0 && ip != "" {
				checks = append(checks, throttle{dimension: "ip", subject: ip, limit: policy.ipLimit})
			}
			if policy.accountLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Could not read the request."))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if account := strings.ToLower(strings.TrimSpace(extractAccount(r, body))); account != "" {
					checks = append(checks, throttle{dimension: "account", subject: hashValue(account), limit: policy.accountLimit})
				}
			}

			for _, check := range checks {
				allowed, count, err := store.FixedWindowAllow(ctx, policy.scope(check), check.limit, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					rejectRateLimited(w, r, logg, flasher, policy, check, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, logg *logger.Logger, flasher responses.Flasher, policy AuthRateLimitPolicy, check throttle, count int64) {
	ctx := r.Context()
	if logg != nil {
		subjectKey := check.dimension
		if check.dimension == "account" {
			subjectKey = "account_hash"
		}
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"scope":          check.dimension,
			subjectKey:       check.subject,
			"attempts":       count,
			"limit":          check.limit,
			"window_seconds": int(policy.window.Seconds()),
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "Too many attempts. Please wait a moment and try again.")
	responses.Fail(w, r, nil, flasher, responses.Back(r, "/"), err)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractAccount(r *http.Request, payload []byte) string {
	var fields struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if validators.IsJSON(r) {
		if json.Unmarshal(payload, &fields) != nil {
			return ""
		}
	} else {
		values, err := url.ParseQuery(string(payload))
		if err != nil {
			return ""
		}
		fields.Email, fields.Username = values.Get("email"), values.Get("username")
	}
	if strings.TrimSpace(fields.Email) != "" {
		return fields.Email
	}
	return fields.Username
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
