// Package relay implements endpoint management, testing and proxy dispatch on
// top of the store, the secret sealer and the provider dispatcher.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keyshield/keyshield/internal/logging"
	"github.com/keyshield/keyshield/internal/models"
	"github.com/keyshield/keyshield/internal/provider"
	"github.com/keyshield/keyshield/internal/security"
	"github.com/keyshield/keyshield/internal/store"
	"github.com/keyshield/keyshield/internal/usage"
	"github.com/keyshield/keyshield/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	maxProxyIDAttempts = 3
	statusWriteTimeout = 5 * time.Second
)

// Invoker performs one provider call.
type Invoker interface {
	Invoke(ctx context.Context, cfg provider.Config, prompt string, rawBody json.RawMessage) (*provider.Response, error)
}

// Options wires a Service.
type Options struct {
	Store      store.EndpointStore
	Dispatcher Invoker
	Sealer     *security.Sealer
	// Recorder may be nil when invocation history is disabled.
	Recorder *usage.Recorder
	// BaseURL is the public origin used to build proxy URLs.
	BaseURL string
}

// Service is the single entry point used by the HTTP layer.
type Service struct {
	store      store.EndpointStore
	dispatcher Invoker
	sealer     *security.Sealer
	recorder   *usage.Recorder
	baseURL    string
	now        func() time.Time
}

// NewService builds a Service from opts.
func NewService(opts Options) *Service {
	return &Service{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		sealer:     opts.Sealer,
		recorder:   opts.Recorder,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		now:        time.Now,
	}
}

// CreateInput carries the fields of a new endpoint.
type CreateInput struct {
	APIType        string   `json:"api_type"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	TargetURL      string   `json:"target_url"`
	APIKey         string   `json:"api_key"`
	AllowedOrigins []string `json:"allowed_origins"`
	// ProxyID adopts an id minted by a previous ad-hoc test.
	ProxyID string `json:"proxy_id"`
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
// An empty APIKey removes the stored key.
type UpdateInput struct {
	APIType        *string   `json:"api_type"`
	Name           *string   `json:"name"`
	Description    *string   `json:"description"`
	TargetURL      *string   `json:"target_url"`
	APIKey         *string   `json:"api_key"`
	AllowedOrigins *[]string `json:"allowed_origins"`
}

// AdHocInput describes a one-shot test that touches no stored state.
type AdHocInput struct {
	APIType   string
	TargetURL string
	APIKey    string
	Prompt    string
	RawBody   json.RawMessage
}

// ProxyRequest is an inbound call on a proxy URL.
type ProxyRequest struct {
	ProxyID string
	Prompt  string
	RawBody json.RawMessage
	// Origin is the caller's Origin header, empty for non-browser clients.
	Origin string
}

// TestResult is the outcome of a successful test call.
type TestResult struct {
	// Body is the upstream JSON with proxy_url and proxy_id merged in.
	Body     json.RawMessage
	ProxyID  string
	ProxyURL string
}

// ProxyDocs describes how to call a proxy URL.
type ProxyDocs struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	APIType        string          `json:"api_type"`
	Method         string          `json:"method"`
	ProxyURL       string          `json:"proxy_url"`
	AllowedOrigins []string        `json:"allowed_origins"`
	ExampleRequest json.RawMessage `json:"example_request"`
}

// ListEndpoints returns every endpoint, newest first.
func (s *Service) ListEndpoints(ctx context.Context, keyword string) ([]EndpointView, error) {
	rows, err := s.store.List(ctx, store.ListOptions{Keyword: keyword})
	if err != nil {
		return nil, err
	}
	out := make([]EndpointView, 0, len(rows))
	for i := range rows {
		out = append(out, s.view(&rows[i]))
	}
	return out, nil
}

// GetEndpoint fetches one endpoint.
func (s *Service) GetEndpoint(ctx context.Context, id string) (*EndpointView, error) {
	endpoint, err := s.getEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.view(endpoint)
	return &view, nil
}

// CreateEndpoint validates in, seals the key and stores a new endpoint with a proxy id.
func (s *Service) CreateEndpoint(ctx context.Context, in CreateInput) (*EndpointView, error) {
	apiType := strings.TrimSpace(in.APIType)
	if apiType == "" {
		return nil, validationError("api_type is required")
	}
	if !provider.IsSupported(apiType) {
		return nil, validationError(fmt.Sprintf("Unsupported API type: %s", apiType))
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("name is required")
	}
	targetURL := strings.TrimSpace(in.TargetURL)
	if errTarget := validateTargetURL(apiType, targetURL); errTarget != nil {
		return nil, errTarget
	}
	if errOrigins := validateOrigins(in.AllowedOrigins); errOrigins != nil {
		return nil, errOrigins
	}
	supplied := strings.TrimSpace(in.ProxyID)
	if supplied != "" && !security.ValidProxyID(supplied) {
		return nil, validationError("proxy_id is malformed")
	}

	sealed, errSeal := s.sealer.Seal(strings.TrimSpace(in.APIKey))
	if errSeal != nil {
		return nil, fmt.Errorf("relay: seal api key: %w", errSeal)
	}

	now := s.now().UTC()
	endpoint := &models.Endpoint{
		ID:           security.NewEndpointID(),
		APIType:      apiType,
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		TargetURL:    targetURL,
		APIKeySealed: sealed,
		Status:       models.StatusNotTested,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	endpoint.SetOrigins(in.AllowedOrigins)

	for attempt := 0; ; attempt++ {
		endpoint.ProxyID = supplied
		if endpoint.ProxyID == "" {
			proxyID, errID := security.GenerateProxyID()
			if errID != nil {
				return nil, errID
			}
			endpoint.ProxyID = proxyID
		}
		errCreate := s.store.Create(ctx, endpoint)
		if errCreate == nil {
			break
		}
		if errors.Is(errCreate, store.ErrConflict) && supplied == "" && attempt+1 < maxProxyIDAttempts {
			continue
		}
		return nil, errCreate
	}

	log.WithFields(log.Fields{"endpoint_id": endpoint.ID, "proxy_id": endpoint.ProxyID, "provider": apiType}).Info("endpoint created")
	view := s.view(endpoint)
	return &view, nil
}

// UpdateEndpoint applies a partial update. id, created_at and proxy_id never change.
func (s *Service) UpdateEndpoint(ctx context.Context, id string, in UpdateInput) (*EndpointView, error) {
	var sealed *string
	if in.APIKey != nil {
		value, errSeal := s.sealer.Seal(strings.TrimSpace(*in.APIKey))
		if errSeal != nil {
			return nil, fmt.Errorf("relay: seal api key: %w", errSeal)
		}
		sealed = &value
	}
	if in.AllowedOrigins != nil {
		if errOrigins := validateOrigins(*in.AllowedOrigins); errOrigins != nil {
			return nil, errOrigins
		}
	}

	updated, err := s.store.Update(ctx, id, func(endpoint *models.Endpoint) error {
		if in.APIType != nil {
			apiType := strings.TrimSpace(*in.APIType)
			if !provider.IsSupported(apiType) {
				return validationError(fmt.Sprintf("Unsupported API type: %s", apiType))
			}
			endpoint.APIType = apiType
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return validationError("name is required")
			}
			endpoint.Name = name
		}
		if in.Description != nil {
			endpoint.Description = strings.TrimSpace(*in.Description)
		}
		if in.TargetURL != nil {
			endpoint.TargetURL = strings.TrimSpace(*in.TargetURL)
		}
		if errTarget := validateTargetURL(endpoint.APIType, endpoint.TargetURL); errTarget != nil {
			return errTarget
		}
		if sealed != nil {
			endpoint.APIKeySealed = *sealed
		}
		if in.AllowedOrigins != nil {
			endpoint.SetOrigins(*in.AllowedOrigins)
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "Endpoint not found")
	}
	view := s.view(updated)
	return &view, nil
}

// DeleteEndpoint removes an endpoint and its invocation history.
func (s *Service) DeleteEndpoint(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.translate(err, "Endpoint not found")
	}
	s.recorder.DeleteForEndpoint(ctx, id)
	log.WithField("endpoint_id", id).Info("endpoint deleted")
	return nil
}

// ListInvocations returns the newest invocation rows of an existing endpoint.
func (s *Service) ListInvocations(ctx context.Context, id string, limit int) ([]models.Invocation, error) {
	if _, err := s.getEndpoint(ctx, id); err != nil {
		return nil, err
	}
	return s.recorder.List(ctx, id, limit)
}

// TestEndpoint dispatches prompt through a stored endpoint and records the outcome.
func (s *Service) TestEndpoint(ctx context.Context, id, prompt string, rawBody json.RawMessage) (*TestResult, error) {
	endpoint, err := s.getEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, validationError("Prompt is required")
	}
	apiKey, err := s.openKey(endpoint)
	if err != nil {
		return nil, err
	}

	if endpoint.ProxyID == "" {
		if endpoint, err = s.assignProxyID(ctx, endpoint.ID); err != nil {
			return nil, err
		}
	}

	resp, errInvoke := s.dispatch(ctx, endpoint, apiKey, prompt, rawBody, models.InvocationSourceTest)
	if errInvoke != nil {
		return nil, errInvoke
	}
	proxyURL := s.ProxyURL(endpoint.ProxyID)
	body, errMerge := mergeProxyInfo(resp.Body, endpoint.ProxyID, proxyURL)
	if errMerge != nil {
		return nil, errMerge
	}
	return &TestResult{Body: body, ProxyID: endpoint.ProxyID, ProxyURL: proxyURL}, nil
}

// TestAdHoc dispatches against an unsaved configuration and mints a proxy id the caller may keep.
func (s *Service) TestAdHoc(ctx context.Context, in AdHocInput) (*TestResult, error) {
	apiType := strings.TrimSpace(in.APIType)
	if apiType == "" {
		apiType = provider.APITypeOpenAI
	}
	apiKey := strings.TrimSpace(in.APIKey)
	if apiKey == "" && provider.RequiresAPIKey(apiType) {
		return nil, validationError("API key is required")
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, validationError("Prompt is required")
	}
	targetURL := strings.TrimSpace(in.TargetURL)
	if provider.IsSupported(apiType) {
		if errTarget := validateTargetURL(apiType, targetURL); errTarget != nil {
			return nil, errTarget
		}
	}

	endpoint := &models.Endpoint{APIType: apiType, TargetURL: targetURL}
	resp, errInvoke := s.dispatch(ctx, endpoint, apiKey, in.Prompt, in.RawBody, models.InvocationSourceAdHoc)
	if errInvoke != nil {
		return nil, errInvoke
	}

	proxyID, errID := security.GenerateProxyID()
	if errID != nil {
		return nil, errID
	}
	proxyURL := s.ProxyURL(proxyID)
	body, errMerge := mergeProxyInfo(resp.Body, proxyID, proxyURL)
	if errMerge != nil {
		return nil, errMerge
	}
	return &TestResult{Body: body, ProxyID: proxyID, ProxyURL: proxyURL}, nil
}

// Proxy relays a prompt through the endpoint behind req.ProxyID and returns the upstream body verbatim.
func (s *Service) Proxy(ctx context.Context, req ProxyRequest) (json.RawMessage, error) {
	endpoint, err := s.getByProxyID(ctx, req.ProxyID)
	if err != nil {
		return nil, err
	}
	if !originAllowed(endpoint.Origins(), req.Origin) {
		logging.Entry(ctx).WithFields(log.Fields{"proxy_id": req.ProxyID, "origin": req.Origin}).Warn("proxy call from disallowed origin")
		return nil, ErrOriginNotAllowed
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, validationError("Prompt is required")
	}
	apiKey, err := s.openKey(endpoint)
	if err != nil {
		return nil, err
	}

	resp, errInvoke := s.dispatch(ctx, endpoint, apiKey, req.Prompt, req.RawBody, models.InvocationSourceProxy)
	if errInvoke != nil {
		return nil, errInvoke
	}
	return resp.Body, nil
}

// CheckOrigin reports whether origin may call the proxy URL, for CORS preflight.
func (s *Service) CheckOrigin(ctx context.Context, proxyID, origin string) error {
	endpoint, err := s.getByProxyID(ctx, proxyID)
	if err != nil {
		return err
	}
	if !originAllowed(endpoint.Origins(), origin) {
		return ErrOriginNotAllowed
	}
	return nil
}

// ProxyDocs returns usage documentation for a proxy URL.
func (s *Service) ProxyDocs(ctx context.Context, proxyID string) (*ProxyDocs, error) {
	endpoint, err := s.getByProxyID(ctx, proxyID)
	if err != nil {
		return nil, err
	}
	example := json.RawMessage(`{"prompt":"Hello!"}`)
	if endpoint.APIType == provider.APITypeCustom {
		example = json.RawMessage(`{"prompt":"Hello!","...":"any additional fields are forwarded verbatim"}`)
	}
	origins := endpoint.Origins()
	if origins == nil {
		origins = []string{}
	}
	return &ProxyDocs{
		Name:           endpoint.Name,
		Description:    endpoint.Description,
		APIType:        endpoint.APIType,
		Method:         "POST",
		ProxyURL:       s.ProxyURL(endpoint.ProxyID),
		AllowedOrigins: origins,
		ExampleRequest: example,
	}, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// dispatch calls the provider, then records status and history without masking the result.
func (s *Service) dispatch(ctx context.Context, endpoint *models.Endpoint, apiKey, prompt string, rawBody json.RawMessage, source string) (*provider.Response, error) {
	start := s.now()
	resp, errInvoke := s.dispatcher.Invoke(ctx, provider.Config{
		APIType:   endpoint.APIType,
		TargetURL: endpoint.TargetURL,
		APIKey:    apiKey,
	}, prompt, rawBody)
	latency := s.now().Sub(start)

	status := models.StatusOperational
	rec := usage.Record{
		EndpointID:  endpoint.ID,
		Provider:    endpoint.APIType,
		Source:      source,
		Success:     errInvoke == nil,
		Latency:     latency,
		RequestedAt: start,
	}
	if errInvoke != nil {
		status = models.StatusError
		rec.Error = errInvoke.Error()
		var upstream *provider.UpstreamError
		if errors.As(errInvoke, &upstream) {
			rec.StatusCode = upstream.StatusCode
		}
	} else {
		rec.StatusCode = resp.StatusCode
	}

	entry := logging.Entry(ctx).WithFields(log.Fields{
		"endpoint_id": endpoint.ID,
		"provider":    endpoint.APIType,
		"status":      status,
		"latency_ms":  latency.Milliseconds(),
	})
	if errInvoke != nil {
		entry.WithError(errInvoke).Warn("dispatch failed")
	} else {
		entry.Debug("dispatch succeeded")
	}

	if endpoint.ID != "" {
		s.recordStatus(ctx, endpoint.ID, status, s.now())
	}
	s.recorder.Record(ctx, rec)
	return resp, errInvoke
}

// recordStatus is best-effort; it runs on a detached context so a canceled request still records.
func (s *Service) recordStatus(ctx context.Context, id, status string, at time.Time) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if err := s.store.RecordStatus(writeCtx, id, status, at); err != nil {
		logging.Entry(ctx).WithError(err).WithField("endpoint_id", id).Warn("record endpoint status failed")
	}
}

func (s *Service) assignProxyID(ctx context.Context, id string) (*models.Endpoint, error) {
	var lastErr error
	for attempt := 0; attempt < maxProxyIDAttempts; attempt++ {
		proxyID, errID := security.GenerateProxyID()
		if errID != nil {
			return nil, errID
		}
		updated, err := s.store.Update(ctx, id, func(endpoint *models.Endpoint) error {
			if endpoint.ProxyID == "" {
				endpoint.ProxyID = proxyID
			}
			return nil
		})
		if err == nil {
			log.WithFields(log.Fields{"endpoint_id": id, "proxy_id": updated.ProxyID}).Info("proxy id assigned")
			return updated, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, s.translate(err, "Endpoint not found")
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) openKey(endpoint *models.Endpoint) (string, error) {
	apiKey, err := s.sealer.Open(endpoint.APIKeySealed)
	if err != nil {
		return "", fmt.Errorf("relay: open api key for %s: %w", endpoint.ID, err)
	}
	if apiKey == "" && provider.RequiresAPIKey(endpoint.APIType) {
		return "", validationError("API key is required")
	}
	return apiKey, nil
}

func (s *Service) getEndpoint(ctx context.Context, id string) (*models.Endpoint, error) {
	endpoint, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.translate(err, "Endpoint not found")
	}
	return endpoint, nil
}

func (s *Service) getByProxyID(ctx context.Context, proxyID string) (*models.Endpoint, error) {
	endpoint, err := s.store.GetByProxyID(ctx, proxyID)
	if err != nil {
		return nil, s.translate(err, "Proxy configuration not found")
	}
	return endpoint, nil
}

func (s *Service) translate(err error, notFoundMessage string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Message: notFoundMessage, Err: err}
	}
	return err
}

func validateTargetURL(apiType, targetURL string) error {
	if targetURL == "" {
		if provider.RequiresTargetURL(apiType) {
			return validationError(fmt.Sprintf("target_url is required for %s", apiType))
		}
		return nil
	}
	if !util.IsAbsoluteHTTPURL(targetURL) {
		return validationError("target_url must be an absolute http(s) URL")
	}
	return nil
}

func validateOrigins(origins []string) error {
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			continue
		}
		if !util.IsAbsoluteHTTPURL(origin) {
			return validationError(fmt.Sprintf("invalid origin %q", origin))
		}
	}
	return nil
}

// originAllowed applies the per-endpoint origin list. Requests without an Origin header pass.
func originAllowed(allowed []string, origin string) bool {
	origin = util.NormalizeOrigin(origin)
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if candidate == "*" || util.NormalizeOrigin(candidate) == origin {
			return true
		}
	}
	return false
}

// mergeProxyInfo adds proxy_url and proxy_id to an object body, or wraps any other JSON value.
func mergeProxyInfo(body json.RawMessage, proxyID, proxyURL string) (json.RawMessage, error) {
	out := []byte(body)
	if !gjson.ParseBytes(body).IsObject() {
		wrapped, err := sjson.SetRawBytes([]byte(`{}`), "response", body)
		if err != nil {
			return nil, fmt.Errorf("relay: wrap response: %w", err)
		}
		out = wrapped
	}
	out, err := sjson.SetBytes(out, "proxy_url", proxyURL)
	if err != nil {
		return nil, fmt.Errorf("relay: merge proxy url: %w", err)
	}
	if out, err = sjson.SetBytes(out, "proxy_id", proxyID); err != nil {
		return nil, fmt.Errorf("relay: merge proxy id: %w", err)
	}
	return out, nil
}
