package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/countmein/backend/pkg/response"
)

// HeaderTelegramSecret carries the secret token set when the webhook was registered.
const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecret rejects webhook calls that do not carry the configured secret.
// An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if !equal(c.GetHeader(HeaderTelegramSecret), secret) {
			response.Unauthorized(c, "invalid webhook secret")
			c.Abort()
			return
		}
		c.Next()
	}
}

// QueryOperatorKey is the query parameter that may carry the operator key instead of
// the Authorization header, so the pages can be opened and paged in a browser.
const QueryOperatorKey = "key"

// OperatorKey allows only requests with "Authorization: Bearer <key>" or "?key=<key>".
// With an empty key every request is refused.
func OperatorKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			response.Forbidden(c, "operator access disabled")
			c.Abort()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			token, ok = c.GetQuery(QueryOperatorKey)
		}
		if !ok || !equal(token, key) {
			response.Unauthorized(c, "invalid operator key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
