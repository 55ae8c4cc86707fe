package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ctxKey int

const identityKey ctxKey = iota

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity attached by RequireAPIKey or RequireSession.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// RequireSession redirects requests without an owner session to /login.
func RequireSession(sessions *SessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, err := sessions.Validate(r)
		if err != nil {
			if err != ErrNoSession {
				slog.Error("validating session", "err", err)
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := WithIdentity(r.Context(), &Identity{Email: email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const (
	failureWindow = time.Minute
	failureBurst  = 10
)

// failureLimiter tracks failed API key attempts per client IP.
type failureLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newFailureLimiter() *failureLimiter {
	return &failureLimiter{clients: make(map[string]*rate.Limiter)}
}

func (f *failureLimiter) get(ip string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.clients[ip]
	if !ok {
		l = rate.NewLimiter(rate.Every(failureWindow/failureBurst), failureBurst)
		f.clients[ip] = l
	}
	return l
}

// blocked reports whether ip has used up its failure budget.
func (f *failureLimiter) blocked(ip string) bool {
	return f.get(ip).Tokens() < 1
}

func (f *failureLimiter) fail(ip string) {
	f.get(ip).Allow()
}

// RequireAPIKey rejects requests without a valid Bearer key.
// Returns 401 for missing or invalid keys and 429 once an IP has failed too often.
func RequireAPIKey(keys *APIKeyStore, next http.Handler) http.Handler {
	limiter := newFailureLimiter()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if limiter.blocked(ip) {
			jsonError(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			jsonError(w, "authorization required", http.StatusUnauthorized)
			return
		}

		id, err := keys.Validate(raw)
		if err != nil {
			slog.Error("validating api key", "err", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
			return
		}
		if id == nil {
			limiter.fail(ip)
			slog.Warn("invalid api key", "ip", ip, "path", r.URL.Path)
			jsonError(w, "invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// ClientIP returns the request's remote host without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Error("encoding error response", "err", err)
	}
}
