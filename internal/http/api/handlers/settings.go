package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	internalsettings "github.com/keyshield/keyshield/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler serves runtime provider defaults.
type SettingsHandler struct {
	db *gorm.DB // Nil when the store backend keeps no SQL database.
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the current overrides and the built-in defaults.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, settingsPayload())
}

// Update upserts overrides. A null value removes the override.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings provided"})
		return
	}

	if errUpsert := internalsettings.Upsert(c.Request.Context(), h.db, body); errUpsert != nil {
		var unknown *internalsettings.UnknownKeyError
		if errors.As(errUpsert, &unknown) {
			c.JSON(http.StatusBadRequest, gin.H{"error": unknown.Error()})
			return
		}
		log.WithError(errUpsert).Error("update settings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update settings failed"})
		return
	}
	c.JSON(http.StatusOK, settingsPayload())
}

func settingsPayload() gin.H {
	var updatedAt *time.Time
	if ts := internalsettings.UpdatedAt(); !ts.IsZero() {
		updatedAt = &ts
	}
	return gin.H{
		"settings":   internalsettings.Snapshot(),
		"defaults":   settingsDefaults(),
		"updated_at": updatedAt,
	}
}

func settingsDefaults() gin.H {
	return gin.H{
		internalsettings.OpenAIModelKey:             internalsettings.DefaultOpenAIModel,
		internalsettings.AnthropicModelKey:          internalsettings.DefaultAnthropicModel,
		internalsettings.CohereModelKey:             internalsettings.DefaultCohereModel,
		internalsettings.AzureDeploymentKey:         internalsettings.DefaultAzureDeployment,
		internalsettings.AzureAPIVersionKey:         internalsettings.DefaultAzureAPIVersion,
		internalsettings.SystemPromptKey:            internalsettings.DefaultSystemPrompt,
		internalsettings.MaxTokensKey:               internalsettings.DefaultMaxTokens,
		internalsettings.InvocationRetentionDaysKey: internalsettings.DefaultInvocationRetentionDays,
	}
}
