package web

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter keeps a token bucket per client IP. Each bucket holds a full
// window's worth of requests and refills evenly across the window.
type rateLimiter struct {
	mu     sync.Mutex
	ips    map[string]*visitor
	limit  rate.Limit
	burst  int
	window time.Duration
	done   chan struct{}
	once   sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows n requests per window for each client IP.
func newRateLimiter(n int, window time.Duration) *rateLimiter {
	n = max(n, 1)
	rl := &rateLimiter{
		ips:    make(map[string]*visitor),
		limit:  rate.Every(window / time.Duration(n)),
		burst:  n,
		window: window,
		done:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// getLimiter returns the bucket for ip, creating it on first sight.
func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.ips[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.ips[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// cleanup drops buckets idle for longer than a window until stop is called.
// An idle bucket is full again, so dropping it changes nothing.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.ips {
				if time.Since(v.lastSeen) > rl.window {
					delete(rl.ips, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *rateLimiter) stopped() bool {
	select {
	case <-rl.done:
		return true
	default:
		return false
	}
}

// retryAfter reports how long until lim admits one more request.
func retryAfter(lim *rate.Limiter) time.Duration {
	now := time.Now()
	r := lim.ReserveN(now, 1)
	defer r.CancelAt(now)
	return r.DelayFrom(now)
}

// middleware rate limits by client IP. TrustedRealIP has already replaced
// RemoteAddr when the request came through a trusted proxy.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.getLimiter(clientIP(r))
		if !lim.Allow() {
			secs := int(math.Ceil(retryAfter(lim).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			writeError(w, http.StatusTooManyRequests, "RATE001", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
