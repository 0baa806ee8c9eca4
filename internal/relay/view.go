package relay

import (
	"time"

	"github.com/keyshield/keyshield/internal/models"
	"github.com/keyshield/keyshield/internal/util"
)

// EndpointView is the client-facing shape of an endpoint. It never carries the API key.
type EndpointView struct {
	ID             string     `json:"id"`
	APIType        string     `json:"api_type"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	TargetURL      string     `json:"target_url"`
	HasAPIKey      bool       `json:"has_api_key"`
	AllowedOrigins []string   `json:"allowed_origins"`
	Status         string     `json:"status"`
	LastTestedAt   *time.Time `json:"last_tested_at"`
	ProxyID        string     `json:"proxy_id"`
	ProxyURL       string     `json:"proxy_url"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (s *Service) view(endpoint *models.Endpoint) EndpointView {
	origins := endpoint.Origins()
	if origins == nil {
		origins = []string{}
	}
	return EndpointView{
		ID:             endpoint.ID,
		APIType:        endpoint.APIType,
		Name:           endpoint.Name,
		Description:    endpoint.Description,
		TargetURL:      endpoint.TargetURL,
		HasAPIKey:      endpoint.HasAPIKey(),
		AllowedOrigins: origins,
		Status:         endpoint.Status,
		LastTestedAt:   endpoint.LastTestedAt,
		ProxyID:        endpoint.ProxyID,
		ProxyURL:       s.ProxyURL(endpoint.ProxyID),
		CreatedAt:      endpoint.CreatedAt,
		UpdatedAt:      endpoint.UpdatedAt,
	}
}

// ProxyURL derives the public proxy URL for proxyID. It is empty when no id is assigned.
func (s *Service) ProxyURL(proxyID string) string {
	if proxyID == "" {
		return ""
	}
	return util.JoinURL(s.baseURL, "/proxy/"+proxyID)
}
