package webui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newUIEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bundle, err := Load()
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	engine := gin.New()
	engine.GET("/endpoints", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"endpoints": []string{}}) })
	Register(engine, bundle)
	return engine
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRegisterServesIndexAndAssets(t *testing.T) {
	engine := newUIEngine(t)

	w := serve(engine, http.MethodGet, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<title>KeyShield</title>") {
		t.Fatalf("index: %d", w.Code)
	}

	w = serve(engine, http.MethodGet, "/assets/app.js")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/endpoints") {
		t.Fatalf("asset: %d", w.Code)
	}

	w = serve(engine, http.MethodGet, "/endpoints")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "endpoints") {
		t.Fatalf("api route shadowed: %d %s", w.Code, w.Body.String())
	}
}

func TestNoRouteFallback(t *testing.T) {
	engine := newUIEngine(t)

	cases := []struct {
		method string
		path   string
		status int
		html   bool
	}{
		{http.MethodGet, "/manage/endpoints", http.StatusOK, true},
		{http.MethodGet, "/missing.js", http.StatusNotFound, false},
		{http.MethodGet, "/endpoints/abc/unknown", http.StatusNotFound, false},
		{http.MethodGet, "/proxy/abc/extra", http.StatusNotFound, false},
		{http.MethodPost, "/manage", http.StatusNotFound, false},
	}
	for _, tc := range cases {
		w := serve(engine, tc.method, tc.path)
		if w.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, w.Code)
		}
		if got := strings.HasPrefix(w.Header().Get("Content-Type"), "text/html"); got != tc.html {
			t.Fatalf("%s %s: html=%v", tc.method, tc.path, got)
		}
	}
}

func TestIsAPIRoute(t *testing.T) {
	for _, p := range []string{"/endpoints", "/endpoints/x", "/proxy/abc", "/settings", "/test-endpoint", "/healthz"} {
		if !IsAPIRoute(p) {
			t.Fatalf("expected %s to be an API route", p)
		}
	}
	for _, p := range []string{"/", "/endpointsx", "/assets/app.js", "/manage"} {
		if IsAPIRoute(p) {
			t.Fatalf("expected %s not to be an API route", p)
		}
	}
}
