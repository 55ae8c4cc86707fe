package web

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wilberttgr/folio/internal/auth"
)

const visitorIdle = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorLimiter applies a token bucket per client IP.
type visitorLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

func newVisitorLimiter(limit rate.Limit, burst int) *visitorLimiter {
	return &visitorLimiter{limit: limit, burst: burst, visitors: make(map[string]*visitor)}
}

func (v *visitorLimiter) allow(ip string) bool {
	now := time.Now()

	v.mu.Lock()
	defer v.mu.Unlock()

	for k, vis := range v.visitors {
		if now.Sub(vis.lastSeen) > visitorIdle {
			delete(v.visitors, k)
		}
	}

	vis, ok := v.visitors[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.limit, v.burst)}
		v.visitors[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter.Allow()
}

// limitWrites rejects public writes from clients over their budget.
func (s *Server) limitWrites(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.writes.allow(auth.ClientIP(r)) {
			w.Header().Set("Retry-After", "10")
			apiError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
