package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestGinLogrusLoggerAssignsRequestIDOnRelayPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.Use(GinLogrusLogger())
	router.POST("/proxy/:proxyId", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		if GetGinRequestID(c) != seen {
			t.Errorf("gin request id %q does not match context id %q", GetGinRequestID(c), seen)
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/proxy/abc", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8-char request id, got %q", seen)
	}
}

func TestGinLogrusLoggerSkipsRequestIDOnManagementPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	seen := "unset"
	router := gin.New()
	router.Use(GinLogrusLogger())
	router.GET("/endpoints", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))

	if seen != "" {
		t.Fatalf("expected no request id, got %q", seen)
	}
}

func TestGinLogrusRecoveryReturnsJSON500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(GinLogrusRecovery())
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "internal server error") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestLogFormatterIncludesRequestIDAndOrderedFields(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.New(),
		Time:    time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "proxy request failed\n",
		Data: log.Fields{
			"request_id": "a1b2c3d4",
			"provider":   "openai",
			"proxy_id":   "AbCdEf123456",
			"ignored":    "x",
		},
		Buffer: &bytes.Buffer{},
	}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	line := string(out)
	want := "[2026-01-02 15:04:05] [a1b2c3d4] [warn ] proxy request failed proxy_id=AbCdEf123456 provider=openai\n"
	if line != want {
		t.Fatalf("unexpected line:\n got %q\nwant %q", line, want)
	}
}
