package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderName carries the gateway key, the same header the backend expects.
const HeaderName = "X-API-Key"

// Gateway guards the gateway routes with a static key.
type Gateway struct {
	key []byte
}

// NewGateway returns a guard for key. An empty key disables the check.
func NewGateway(key string) *Gateway {
	return &Gateway{key: []byte(strings.TrimSpace(key))}
}

// Enabled reports whether requests are checked.
func (g *Gateway) Enabled() bool {
	return g != nil && len(g.key) > 0
}

// Middleware rejects requests whose X-API-Key does not match. Bearer
// authorization is accepted as an alternative carrier.
func (g *Gateway) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Enabled() || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		presented := extractKey(c)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key required"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), g.key) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

func extractKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(HeaderName)); key != "" {
		return key
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
