package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyshield/keyshield/internal/logging"
	"github.com/keyshield/keyshield/internal/provider"
	"github.com/keyshield/keyshield/internal/relay"
	"github.com/keyshield/keyshield/internal/store"
)

// writeError maps service errors to status codes and renders {"error": message}.
// Provider error documents are relayed unchanged with the provider's status.
func writeError(c *gin.Context, err error) {
	var validation *relay.ValidationError
	var notFound *relay.NotFoundError
	var unsupported *provider.UnsupportedProviderError
	var upstream *provider.UpstreamError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
	case errors.As(err, &unsupported):
		c.JSON(http.StatusBadRequest, gin.H{"error": unsupported.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Message})
	case errors.Is(err, relay.ErrOriginNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Proxy ID already in use"})
	case errors.As(err, &upstream) && len(upstream.Body) > 0:
		c.Data(upstreamStatus(upstream.StatusCode), "application/json; charset=utf-8", upstream.Body)
	case errors.As(err, &upstream):
		c.JSON(http.StatusInternalServerError, gin.H{"error": upstream.Error()})
	default:
		logging.Entry(c.Request.Context()).WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// upstreamStatus keeps provider 4xx/5xx codes and maps anything else to 500.
func upstreamStatus(code int) int {
	if code >= http.StatusBadRequest && code <= 599 {
		return code
	}
	return http.StatusInternalServerError
}
