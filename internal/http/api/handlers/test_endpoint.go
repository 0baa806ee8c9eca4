package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyshield/keyshield/internal/relay"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// credentialFields are stripped before an ad-hoc body is forwarded to a custom upstream.
var credentialFields = []string{"api_key", "api_type", "target_url"}

// TestEndpointHandler serves the ad-hoc test route.
type TestEndpointHandler struct {
	svc *relay.Service
}

// NewTestEndpointHandler constructs a TestEndpointHandler.
func NewTestEndpointHandler(svc *relay.Service) *TestEndpointHandler {
	return &TestEndpointHandler{svc: svc}
}

// Test runs a one-shot call against an unsaved configuration.
func (h *TestEndpointHandler) Test(c *gin.Context) {
	raw, prompt, ok := readPromptBody(c)
	if !ok {
		return
	}
	body := gjson.ParseBytes(raw)
	if len(raw) > 0 && !body.IsObject() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	forwarded := []byte(raw)
	for _, field := range credentialFields {
		if body.Get(field).Exists() {
			stripped, errDelete := sjson.DeleteBytes(forwarded, field)
			if errDelete != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
				return
			}
			forwarded = stripped
		}
	}

	result, err := h.svc.TestAdHoc(c.Request.Context(), relay.AdHocInput{
		APIType:   body.Get("api_type").String(),
		TargetURL: body.Get("target_url").String(),
		APIKey:    body.Get("api_key").String(),
		Prompt:    prompt,
		RawBody:   forwarded,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Body)
}
