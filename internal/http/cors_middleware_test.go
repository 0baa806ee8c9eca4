package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func runCORSRequest(t *testing.T, origins []string, method, path, origin string) *httptest.ResponseRecorder {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware(origins))
	router.GET("/endpoints", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/proxy/:proxyId", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSMiddlewareAllowsListedOrigin(t *testing.T) {
	w := runCORSRequest(t, []string{"http://localhost:5173/"}, http.MethodGet, "/endpoints", "http://localhost:5173")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestCORSMiddlewareOmitsHeadersForUnknownOrigin(t *testing.T) {
	w := runCORSRequest(t, []string{"http://localhost:5173"}, http.MethodGet, "/endpoints", "https://evil.example.com")
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected no CORS headers for unknown origin")
	}
}

func TestCORSMiddlewareAnswersPreflight(t *testing.T) {
	w := runCORSRequest(t, []string{"*"}, http.MethodOptions, "/endpoints", "https://any.example.com")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("expected allow methods header")
	}
}

func TestCORSMiddlewareSkipsProxyRoutes(t *testing.T) {
	w := runCORSRequest(t, []string{"*"}, http.MethodPost, "/proxy/abc", "https://any.example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("proxy routes must not receive global CORS headers")
	}
}
