package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter stores rate limiters for different IPs
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mutex    sync.RWMutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

// GetLimiter returns a rate limiter for the given IP
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	limiter, exists := rl.limiters[ip]
	if !exists {
		// Allow 60 requests per minute, burst of 30
		limiter = rate.NewLimiter(rate.Every(time.Second), 30)
		rl.limiters[ip] = limiter
	}
	rl.lastSeen[ip] = time.Now()

	return limiter
}

// Cleanup removes old limiters to prevent memory leaks
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for ip, t := range rl.lastSeen {
		if now.Sub(t) > time.Hour {
			delete(rl.limiters, ip)
			delete(rl.lastSeen, ip)
		}
	}
}

var globalRateLimiter = NewRateLimiter()

// RateLimitMiddleware limits requests per client IP
func RateLimitMiddleware() gin.HandlerFunc {
	// Periodic cleanup of idle limiters
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			globalRateLimiter.Cleanup()
		}
	}()

	return func(c *gin.Context) {
		limiter := globalRateLimiter.GetLimiter(c.ClientIP())
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests, please slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthRateLimitMiddleware applies a stricter limit to authentication endpoints
func AuthRateLimitMiddleware() gin.HandlerFunc {
	authLimiter := NewRateLimiter()

	return func(c *gin.Context) {
		rl := authLimiter
		rl.mutex.Lock()
		limiter, exists := rl.limiters[c.ClientIP()]
		if !exists {
			// 10 auth attempts per minute
			limiter = rate.NewLimiter(rate.Every(6*time.Second), 10)
			rl.limiters[c.ClientIP()] = limiter
		}
		rl.lastSeen[c.ClientIP()] = time.Now()
		rl.mutex.Unlock()

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many authentication attempts, please try again later",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware sets common security headers
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
