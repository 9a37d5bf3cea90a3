package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CodeRateLimited is the envelope error code for rejected requests.
const CodeRateLimited = "RATE_LIMITED"

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// Exempt lists route patterns that are never limited.
	Exempt []string
	// IdleTTL is how long an idle client's limiter is kept.
	IdleTTL time.Duration
	// Global selects one shared bucket instead of one per client IP.
	Global bool
}

// DefaultRateLimitConfig returns the default rate limit configuration.
// The result callback is exempt: dropping it would turn a finished tool
// call into a timeout.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		Exempt:            []string{"/api/results"},
		IdleTTL:           5 * time.Minute,
	}
}

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	exempt := exemptSet(cfg.Exempt)

	var (
		mu        sync.Mutex
		clients   = make(map[string]*client)
		lastSweep = time.Now()
	)

	return func(c *gin.Context) {
		if exempt[c.FullPath()] {
			c.Next()
			return
		}

		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > cfg.IdleTTL {
			for key, cl := range clients {
				if now.Sub(cl.lastSeen) > cfg.IdleTTL {
					delete(clients, key)
				}
			}
			lastSweep = now
		}
		cl, exists := clients[ip]
		if !exists {
			cl = &client{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		limiter := cl.limiter
		mu.Unlock()

		if !limiter.Allow() {
			reject(c)
			return
		}

		c.Next()
	}
}

// Limit returns GlobalRateLimit or RateLimit depending on cfg.Global.
func Limit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Global {
		return GlobalRateLimit(cfg)
	}
	return RateLimit(cfg)
}

// GlobalRateLimit creates a global rate limiting middleware.
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	exempt := exemptSet(cfg.Exempt)

	return func(c *gin.Context) {
		if !exempt[c.FullPath()] && !limiter.Allow() {
			reject(c)
			return
		}
		c.Next()
	}
}

func exemptSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

func reject(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"data":    nil,
		"error": gin.H{
			"code":    CodeRateLimited,
			"message": "rate limit exceeded",
		},
	})
}
