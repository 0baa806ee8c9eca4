package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// readPromptBody reads the request body and extracts its "prompt" field.
// An empty body yields an empty prompt; a non-JSON body is rejected.
func readPromptBody(c *gin.Context) (json.RawMessage, string, bool) {
	raw, errRead := c.GetRawData()
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, "", false
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, "", true
	}
	if !gjson.ValidBytes(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return nil, "", false
	}
	prompt := gjson.GetBytes(raw, "prompt")
	if prompt.Type != gjson.String {
		return json.RawMessage(raw), "", true
	}
	return json.RawMessage(raw), prompt.String(), true
}
