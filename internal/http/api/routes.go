// Package api registers the HTTP routes.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/keyshield/keyshield/internal/http/api/handlers"
	"github.com/keyshield/keyshield/internal/relay"
	"gorm.io/gorm"
)

// RegisterRoutes mounts management, test and proxy routes on r.
// db may be nil; settings then live in memory only.
func RegisterRoutes(r *gin.Engine, svc *relay.Service, db *gorm.DB) {
	if r == nil || svc == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(svc)
	r.GET("/healthz", healthHandler.Healthz)

	endpointHandler := handlers.NewEndpointHandler(svc)
	r.GET("/endpoints", endpointHandler.List)
	r.POST("/endpoints", endpointHandler.Create)
	r.GET("/endpoints/:id", endpointHandler.Get)
	r.PUT("/endpoints/:id", endpointHandler.Update)
	r.DELETE("/endpoints/:id", endpointHandler.Delete)
	r.POST("/endpoints/:id/test", endpointHandler.Test)
	r.GET("/endpoints/:id/invocations", endpointHandler.Invocations)

	testHandler := handlers.NewTestEndpointHandler(svc)
	r.POST("/test-endpoint", testHandler.Test)

	proxyHandler := handlers.NewProxyHandler(svc)
	r.POST("/proxy/:proxyId", proxyHandler.Invoke)
	r.GET("/proxy/:proxyId", proxyHandler.Docs)
	r.OPTIONS("/proxy/:proxyId", proxyHandler.Preflight)

	settingsHandler := handlers.NewSettingsHandler(db)
	r.GET("/settings", settingsHandler.Get)
	r.PUT("/settings", settingsHandler.Update)
}
