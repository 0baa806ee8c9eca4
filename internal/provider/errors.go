package provider

import (
	"encoding/json"
	"fmt"
)

// UnsupportedProviderError is returned for an apiType without a template.
type UnsupportedProviderError struct {
	APIType string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("Unsupported API type: %s", e.APIType)
}

// UpstreamError describes a failed provider call.
// StatusCode is zero when no HTTP response was received.
// Body holds the provider's JSON error document for non-2xx responses that carried one.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Body       json.RawMessage
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s request failed", e.Provider)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
