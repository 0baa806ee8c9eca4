package webui

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// apiPrefixes never fall through to the UI.
var apiPrefixes = []string{"/endpoints", "/proxy", "/settings", "/test-endpoint", "/healthz"}

// Register serves the UI at "/" with SPA fallback for unknown GET paths.
func Register(engine *gin.Engine, bundle Bundle) {
	fileServer := http.FileServer(http.FS(bundle.Files))
	engine.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", bundle.IndexHTML)
	})
	engine.StaticFS("/assets", bundle.Assets)
	engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		requestPath := c.Request.URL.Path
		if IsAPIRoute(requestPath) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		filePath := strings.TrimPrefix(path.Clean("/"+requestPath), "/")
		if filePath != "" {
			info, errStat := fs.Stat(bundle.Files, filePath)
			if errStat == nil && !info.IsDir() {
				fileServer.ServeHTTP(c.Writer, c.Request)
				return
			}
			if strings.Contains(path.Base(filePath), ".") {
				c.Status(http.StatusNotFound)
				return
			}
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", bundle.IndexHTML)
	})
}

// IsAPIRoute reports whether requestPath belongs to the JSON API.
func IsAPIRoute(requestPath string) bool {
	for _, prefix := range apiPrefixes {
		if requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/") {
			return true
		}
	}
	return false
}
