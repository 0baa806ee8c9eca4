package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Endpoint status values.
const (
	// StatusNotTested marks an endpoint that has never been invoked.
	StatusNotTested = "not_tested"
	// StatusOperational marks an endpoint whose last invocation succeeded.
	StatusOperational = "operational"
	// StatusError marks an endpoint whose last invocation failed.
	StatusError = "error"
)

// Endpoint stores one upstream provider configuration.
type Endpoint struct {
	ID string `gorm:"type:varchar(64);primaryKey" json:"id"` // Opaque identifier.

	APIType     string `gorm:"type:varchar(32);not null;index" json:"api_type"` // Provider tag.
	Name        string `gorm:"type:text;not null" json:"name"`                   // Display name.
	Description string `gorm:"type:text" json:"description"`                     // Free-text notes.
	TargetURL   string `gorm:"type:text" json:"target_url"`                      // Upstream URL for URL-based providers.

	APIKeySealed string `gorm:"type:text" json:"api_key_sealed,omitempty"` // Sealed upstream credential.

	AllowedOrigins datatypes.JSON `gorm:"type:jsonb" json:"allowed_origins"` // Permitted CORS origins.

	Status       string     `gorm:"type:varchar(32);not null;default:not_tested" json:"status"` // Last invocation outcome.
	LastTestedAt *time.Time `json:"last_tested_at"`                                             // Last invocation time.

	ProxyID string `gorm:"type:varchar(64);uniqueIndex:idx_endpoints_proxy_id,where:proxy_id <> ''" json:"proxy_id"` // Stable proxy identifier.

	CreatedAt time.Time `gorm:"not null" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"` // Last update timestamp.
}

// Origins decodes the stored allowed origin list.
func (e *Endpoint) Origins() []string {
	if e == nil || len(e.AllowedOrigins) == 0 {
		return nil
	}
	var out []string
	if errUnmarshal := json.Unmarshal(e.AllowedOrigins, &out); errUnmarshal != nil {
		return nil
	}
	return out
}

// SetOrigins normalizes and encodes the allowed origin list.
func (e *Endpoint) SetOrigins(origins []string) {
	if e == nil {
		return
	}
	seen := make(map[string]struct{}, len(origins))
	cleaned := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		cleaned = append(cleaned, origin)
	}
	raw, _ := json.Marshal(cleaned)
	e.AllowedOrigins = datatypes.JSON(raw)
}

// HasAPIKey reports whether a credential is stored.
func (e *Endpoint) HasAPIKey() bool {
	return e != nil && strings.TrimSpace(e.APIKeySealed) != ""
}
