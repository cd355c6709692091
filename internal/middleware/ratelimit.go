package middleware

import (
	"sync"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/gin-gonic/gin"
)

// ByIP charges the client address.
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// BySession charges the checkout session in the :id path parameter,
// falling back to the client address.
func BySession(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return "session:" + id
	}
	return c.ClientIP()
}

// RateLimitConfig returns a limiter config for the checkout API. Health,
// readiness and metrics paths are never limited.
func RateLimitConfig(rps float64, burst int, key func(*gin.Context) string) gosharedmw.RateLimitConfig {
	config := gosharedmw.DefaultRateLimitConfig()
	config.RequestsPerSecond = rps
	config.BurstSize = burst
	config.KeyFunc = key
	return config
}

// CheckoutRateLimits groups the limiters of the checkout API
type CheckoutRateLimits struct {
	CreateSession *gosharedmw.RateLimiter // per IP
	Dispatch      *gosharedmw.RateLimiter // per checkout session
	APIGeneral    *gosharedmw.RateLimiter // per IP

	stopOnce sync.Once
}

// NewCheckoutRateLimits creates the checkout API limiters
func NewCheckoutRateLimits() *CheckoutRateLimits {
	return &CheckoutRateLimits{
		CreateSession: gosharedmw.NewRateLimiter(RateLimitConfig(5, 20, ByIP)),
		Dispatch:      gosharedmw.NewRateLimiter(RateLimitConfig(10, 30, BySession)),
		APIGeneral:    gosharedmw.NewRateLimiter(RateLimitConfig(100, 200, ByIP)),
	}
}

// Stop ends background cleanup on every limiter. It is safe to call twice.
func (l *CheckoutRateLimits) Stop() {
	l.stopOnce.Do(func() {
		l.CreateSession.Stop()
		l.Dispatch.Stop()
		l.APIGeneral.Stop()
	})
}
