package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/keyshield/keyshield/internal/relay"
)

// EndpointHandler serves endpoint management routes.
type EndpointHandler struct {
	svc *relay.Service
}

// NewEndpointHandler constructs an EndpointHandler.
func NewEndpointHandler(svc *relay.Service) *EndpointHandler {
	return &EndpointHandler{svc: svc}
}

// List returns endpoints filtered by keyword, newest first.
func (h *EndpointHandler) List(c *gin.Context) {
	views, err := h.svc.ListEndpoints(c.Request.Context(), strings.TrimSpace(c.Query("keyword")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": views})
}

// Get returns a single endpoint.
func (h *EndpointHandler) Get(c *gin.Context) {
	view, err := h.svc.GetEndpoint(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Create validates and stores a new endpoint.
func (h *EndpointHandler) Create(c *gin.Context) {
	var body relay.CreateInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	view, err := h.svc.CreateEndpoint(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Update applies a partial update.
func (h *EndpointHandler) Update(c *gin.Context) {
	var body relay.UpdateInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	view, err := h.svc.UpdateEndpoint(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete removes an endpoint.
func (h *EndpointHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteEndpoint(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Test dispatches the request prompt through a stored endpoint.
func (h *EndpointHandler) Test(c *gin.Context) {
	raw, prompt, ok := readPromptBody(c)
	if !ok {
		return
	}
	result, err := h.svc.TestEndpoint(c.Request.Context(), c.Param("id"), prompt, raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Body)
}

// Invocations lists the most recent dispatch attempts of an endpoint.
func (h *EndpointHandler) Invocations(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	rows, err := h.svc.ListInvocations(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invocations": rows})
}
