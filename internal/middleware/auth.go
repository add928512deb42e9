package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// authTimingFloor is the minimum response time for auth endpoints to prevent
// timing oracle attacks that could distinguish valid from invalid tokens.
const authTimingFloor = 50 * time.Millisecond

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AdminAuth returns Gin middleware guarding mutating admin endpoints with a
// statically configured bearer token, compared in constant time. An empty
// tokens list disables the admin surface's write operations entirely (every
// request is rejected) rather than admitting unauthenticated writes.
func AdminAuth(tokens []string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		presented := ExtractBearerToken(c)
		if presented == "" || !tokenMatches(tokens, presented) {
			logAuthFailure(log, c, presented)
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}

		c.Next()
	}
}

func tokenMatches(tokens []string, presented string) bool {
	for _, t := range tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(presented)) == 1 {
			return true
		}
	}
	return false
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a failed authentication attempt.
func logAuthFailure(log *logrus.Logger, c *gin.Context, token string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString("request_id"),
		"key_prefix": truncateKey(token),
	}).Warn("admin authentication failed")
}
