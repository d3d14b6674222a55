package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"procurement-client/models"
	"procurement-client/session"
)

// Logging writes one JSON line per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := map[string]interface{}{
			"ts":       start.UTC().Format(time.RFC3339Nano),
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			entry["errors"] = c.Errors.String()
		}
		if err := json.NewEncoder(log.Writer()).Encode(entry); err != nil {
			log.Printf("%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}

// Recovery turns a panic into the standard error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		log.Printf("Panic recovered: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			models.NewErrorResponse("internal_server_error", "Internal server error occurred", http.StatusInternalServerError))
	})
}

// SecurityHeaders sets the usual hardening headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// APIKey rejects requests without the configured key in X-API-Key or an
// Authorization bearer. An empty key disables the check.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-API-Key")
		if got == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				got = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				models.NewErrorResponseWithHint("API_KEY_REQUIRED", "API key required", http.StatusUnauthorized, "Send X-API-Key or Authorization: Bearer <key>."))
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			log.Printf("AUDIT: Invalid API key for %s %s", c.Request.Method, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden,
				models.NewErrorResponseWithHint("API_KEY_INVALID", "Invalid API key", http.StatusForbidden, "Double-check the X-API-Key header value."))
			return
		}
		c.Next()
	}
}

// RequireAccount guards routes that need a connected wallet.
func RequireAccount(sess *session.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := sess.RequireAccount()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				models.NewErrorResponseWithHint("WALLET_NOT_CONNECTED", "Connect your wallet before submitting.", http.StatusUnauthorized, "Configure a signer key to enable writes"))
			return
		}
		c.Set("account", addr.Hex())
		c.Next()
	}
}
