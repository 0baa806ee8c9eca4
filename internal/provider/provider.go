// Package provider turns a prompt into one outbound call against a fixed
// provider template and returns the raw JSON answer.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/keyshield/keyshield/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Provider tags.
const (
	APITypeOpenAI      = "openai"
	APITypeAnthropic   = "anthropic"
	APITypeCohere      = "cohere"
	APITypeGoogleAI    = "google-ai"
	APITypeAzureOpenAI = "azure-openai"
	APITypeHuggingFace = "huggingface"
	APITypeCustom      = "custom"
)

// Fixed upstream URLs for providers that ignore the stored target URL.
const (
	DefaultOpenAIURL    = "https://api.openai.com/v1/chat/completions"
	DefaultAnthropicURL = "https://api.anthropic.com/v1/complete"
	DefaultCohereURL    = "https://api.cohere.ai/v1/generate"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultMaxResponseBytes = 10 << 20
)

// APITypes lists every supported provider tag in display order.
func APITypes() []string {
	return []string{
		APITypeOpenAI,
		APITypeAnthropic,
		APITypeCohere,
		APITypeGoogleAI,
		APITypeAzureOpenAI,
		APITypeHuggingFace,
		APITypeCustom,
	}
}

// IsSupported reports whether apiType has a template.
func IsSupported(apiType string) bool {
	_, ok := templates[apiType]
	return ok
}

// RequiresTargetURL reports whether the template builds its URL from the stored target URL.
func RequiresTargetURL(apiType string) bool {
	switch apiType {
	case APITypeGoogleAI, APITypeAzureOpenAI, APITypeHuggingFace, APITypeCustom:
		return true
	default:
		return false
	}
}

// RequiresAPIKey reports whether a credential must be present before dispatch.
func RequiresAPIKey(apiType string) bool {
	return apiType != APITypeCustom
}

// Config is the subset of an endpoint needed to build the outbound call.
type Config struct {
	APIType   string
	TargetURL string
	APIKey    string
}

// Response is a successful upstream answer.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Options configures a Dispatcher.
type Options struct {
	Timeout          time.Duration
	ProxyURL         string
	MaxResponseBytes int64
	OpenAIURL        string
	AnthropicURL     string
	CohereURL        string
	// HTTPClient replaces the client built from Timeout and ProxyURL.
	HTTPClient *http.Client
}

// Dispatcher performs provider calls.
type Dispatcher struct {
	client       *http.Client
	maxBytes     int64
	openAIURL    string
	anthropicURL string
	cohereURL    string
}

// NewDispatcher builds a Dispatcher with defaults applied.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		var errClient error
		client, errClient = NewHTTPClient(timeout, opts.ProxyURL)
		if errClient != nil {
			return nil, errClient
		}
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	return &Dispatcher{
		client:       client,
		maxBytes:     maxBytes,
		openAIURL:    firstNonEmpty(opts.OpenAIURL, DefaultOpenAIURL),
		anthropicURL: firstNonEmpty(opts.AnthropicURL, DefaultAnthropicURL),
		cohereURL:    firstNonEmpty(opts.CohereURL, DefaultCohereURL),
	}, nil
}

// Invoke sends exactly one request built from the template for cfg.APIType.
// Preconditions on prompt and key are checked by the caller.
func (d *Dispatcher) Invoke(ctx context.Context, cfg Config, prompt string, rawBody json.RawMessage) (*Response, error) {
	build, ok := templates[cfg.APIType]
	if !ok {
		return nil, &UnsupportedProviderError{APIType: cfg.APIType}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	outbound, errBuild := build(d, cfg, prompt, rawBody)
	if errBuild != nil {
		return nil, &UpstreamError{Provider: cfg.APIType, Message: errBuild.Error(), Err: errBuild}
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, outbound.url, bytes.NewReader(outbound.body))
	if errReq != nil {
		return nil, &UpstreamError{Provider: cfg.APIType, Message: "invalid upstream url", Err: errReq}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range outbound.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	entry := logging.Entry(ctx).WithField("provider", cfg.APIType)
	start := time.Now()
	resp, errDo := d.client.Do(req)
	if errDo != nil {
		entry.WithError(errDo).Warn("provider request failed")
		return nil, &UpstreamError{Provider: cfg.APIType, Message: transportMessage(errDo), Err: errDo}
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Debug("provider: close response body")
		}
	}()

	body, errRead := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if errRead != nil {
		return nil, &UpstreamError{Provider: cfg.APIType, StatusCode: resp.StatusCode, Message: "failed to read upstream response", Err: errRead}
	}
	if int64(len(body)) > d.maxBytes {
		return nil, &UpstreamError{Provider: cfg.APIType, StatusCode: resp.StatusCode, Message: "upstream response too large"}
	}

	entry.WithFields(log.Fields{
		"status_code": resp.StatusCode,
		"latency_ms":  time.Since(start).Milliseconds(),
	}).Debug("provider request completed")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		upstream := &UpstreamError{
			Provider:   cfg.APIType,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(body, resp.StatusCode),
		}
		if gjson.ValidBytes(body) {
			upstream.Body = json.RawMessage(body)
		}
		return nil, upstream
	}
	if !gjson.ValidBytes(body) {
		return nil, &UpstreamError{Provider: cfg.APIType, StatusCode: resp.StatusCode, Message: "invalid upstream response"}
	}
	return &Response{StatusCode: resp.StatusCode, Body: json.RawMessage(body)}, nil
}

// extractErrorMessage pulls a human readable message out of a provider error body.
func extractErrorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message", "detail"} {
			result := gjson.GetBytes(body, path)
			if result.Type == gjson.String {
				if msg := strings.TrimSpace(result.String()); msg != "" {
					return msg
				}
			}
		}
	}
	return fmt.Sprintf("upstream returned status %d", status)
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "upstream request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "upstream request canceled"
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return "upstream request timed out"
	}
	return "failed to reach upstream"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
