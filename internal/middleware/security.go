package middleware

import (
	"net/http"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/gin-gonic/gin"

	"checkout-service/internal/models"
)

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key RequestID stores the ID under.
const RequestIDKey = "request_id"

// SecurityHeaders sets the API response headers. HSTS is only sent when
// strictTransport is set.
func SecurityHeaders(strictTransport bool) gin.HandlerFunc {
	config := gosharedmw.APISecurityHeadersConfig()
	config.ContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	if !strictTransport {
		config.HSTSMaxAge = 0
	}
	return gosharedmw.SecurityHeadersWithConfig(config)
}

// CheckoutCORSConfig returns the checkout API CORS settings for the given
// storefront origins. Origins match exactly; "*" allows any origin without
// credentials.
func CheckoutCORSConfig(origins []string) gosharedmw.CORSConfig {
	config := gosharedmw.DefaultCORSConfig()
	config.AllowedOrigins = origins
	config.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	config.AllowedHeaders = []string{"Authorization", "Content-Type", RequestIDHeader, "X-Cart-Session"}
	config.ExposedHeaders = []string{RequestIDHeader}
	config.AllowCredentials = true
	return config
}

// CORS answers preflights and reflects allowed storefront origins.
func CORS(origins []string) gin.HandlerFunc {
	return gosharedmw.CORSWithConfig(CheckoutCORSConfig(origins))
}

// RequestID propagates X-Request-ID, generating one when the caller sent none.
func RequestID() gin.HandlerFunc {
	return gosharedmw.RequestIDMiddleware()
}

// ValidateRequest requires JSON on requests that carry a body
func ValidateRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength != 0 && c.ContentType() != gin.MIMEJSON {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, models.ErrorResponse{
					Error:   "Unsupported media type",
					Message: "Content-Type must be application/json",
				})
				return
			}
		}
		c.Next()
	}
}
