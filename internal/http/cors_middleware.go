package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keyshield/keyshield/internal/util"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, Accept"
	corsMaxAge       = "600"
)

// CORSMiddleware applies the global origin list to management routes.
// Proxy routes are skipped; they answer with the per-endpoint origin list.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		origin = util.NormalizeOrigin(origin)
		if origin == "*" {
			allowAll = true
			continue
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/proxy/") {
			c.Next()
			return
		}

		origin := util.NormalizeOrigin(c.GetHeader("Origin"))
		if origin != "" {
			_, ok := allowed[origin]
			if ok || allowAll {
				SetCORSHeaders(c, c.GetHeader("Origin"))
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetCORSHeaders writes the CORS response headers for origin.
func SetCORSHeaders(c *gin.Context, origin string) {
	header := c.Writer.Header()
	header.Set("Access-Control-Allow-Origin", origin)
	header.Add("Vary", "Origin")
	header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	header.Set("Access-Control-Max-Age", corsMaxAge)
}
