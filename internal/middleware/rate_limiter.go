package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"o3-ttgifts-backend/internal/metrics"
)

// RateLimitPolicy is a per-client budget of Max requests per Window.
type RateLimitPolicy struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
	// SkipSuccessful counts only responses with status 400 or above.
	SkipSuccessful bool
}

// Policies used by the route table.
var (
	APIRateLimit = RateLimitPolicy{
		Name:    "api",
		Max:     100,
		Window:  15 * time.Minute,
		Message: "Too many requests from this IP, please try again later",
	}
	AuthRateLimit = RateLimitPolicy{
		Name:           "auth",
		Max:            5,
		Window:         15 * time.Minute,
		Message:        "Too many authentication attempts, please try again later",
		SkipSuccessful: true,
	}
	PaymentRateLimit = RateLimitPolicy{
		Name:    "payment",
		Max:     3,
		Window:  time.Minute,
		Message: "Too many payment requests, please wait a moment",
	}
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Buckets refill at
// Max/Window and hold at most Max tokens.
type RateLimiter struct {
	policy  RateLimitPolicy
	mu      sync.Mutex
	clients map[string]*clientLimiter
	quit    chan struct{}
	once    sync.Once
}

// NewRateLimiter starts a limiter and its idle-client cleanup loop.
func NewRateLimiter(policy RateLimitPolicy) *RateLimiter {
	rl := &RateLimiter{
		policy:  policy,
		clients: make(map[string]*clientLimiter),
		quit:    make(chan struct{}),
	}
	go rl.cleanupLoop(policy.Window)
	return rl
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, ok := rl.clients[ip]
	if !ok {
		every := rl.policy.Window / time.Duration(rl.policy.Max)
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Every(every), rl.policy.Max)}
		rl.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Middleware rejects a client that has spent its budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.limiterFor(c.ClientIP())

		// With SkipSuccessful a token is only spent once the response is
		// known to have failed.
		if rl.policy.SkipSuccessful {
			if limiter.Tokens() < 1 {
				rl.reject(c, limiter.Reserve())
				return
			}
			rl.setHeaders(c, limiter)
			c.Next()
			if c.Writer.Status() >= http.StatusBadRequest {
				limiter.Allow()
			}
			return
		}

		reservation := limiter.Reserve()
		if !reservation.OK() || reservation.Delay() > 0 {
			rl.reject(c, reservation)
			return
		}
		rl.setHeaders(c, limiter)
		c.Next()
	}
}

func (rl *RateLimiter) setHeaders(c *gin.Context, limiter *rate.Limiter) {
	c.Header("RateLimit-Limit", strconv.Itoa(rl.policy.Max))
	c.Header("RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
}

// reject answers 429. The reservation is only used to compute Retry-After
// and is cancelled so the refused request costs nothing.
func (rl *RateLimiter) reject(c *gin.Context, reservation *rate.Reservation) {
	retryAfter := reservation.Delay()
	reservation.Cancel()
	metrics.RateLimitedTotal.WithLabelValues(rl.policy.Name).Inc()
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
	AbortWithMessage(c, http.StatusTooManyRequests, rl.policy.Message)
}

// cleanupLoop drops clients idle for longer than one window; a fresh bucket
// is full anyway.
func (rl *RateLimiter) cleanupLoop(window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, entry := range rl.clients {
				if time.Since(entry.lastSeen) > window {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.quit:
			return
		}
	}
}

// Stop ends the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.quit) })
}
