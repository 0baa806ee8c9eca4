package provider

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/keyshield/keyshield/internal/settings"
	"github.com/keyshield/keyshield/internal/util"
	"github.com/tidwall/sjson"
)

type outboundRequest struct {
	url     string
	headers http.Header
	body    []byte
}

type templateFunc func(d *Dispatcher, cfg Config, prompt string, rawBody []byte) (*outboundRequest, error)

// templates maps every provider tag to its request builder.
var templates = map[string]templateFunc{
	APITypeOpenAI:      buildOpenAI,
	APITypeAnthropic:   buildAnthropic,
	APITypeCohere:      buildCohere,
	APITypeGoogleAI:    buildGoogleAI,
	APITypeAzureOpenAI: buildAzureOpenAI,
	APITypeHuggingFace: buildHuggingFace,
	APITypeCustom:      buildCustom,
}

func buildOpenAI(d *Dispatcher, cfg Config, prompt string, _ []byte) (*outboundRequest, error) {
	body, err := chatBody(settings.StringValue(settings.OpenAIModelKey, settings.DefaultOpenAIModel), prompt)
	if err != nil {
		return nil, err
	}
	return &outboundRequest{url: d.openAIURL, headers: bearer(cfg.APIKey), body: body}, nil
}

func buildAnthropic(d *Dispatcher, cfg Config, prompt string, _ []byte) (*outboundRequest, error) {
	body, err := setAll([]byte(`{}`),
		"prompt", "\n\nHuman: "+prompt+"\n\nAssistant:",
		"model", settings.StringValue(settings.AnthropicModelKey, settings.DefaultAnthropicModel),
		"max_tokens_to_sample", maxTokens(),
	)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("X-API-Key", cfg.APIKey)
	return &outboundRequest{url: d.anthropicURL, headers: headers, body: body}, nil
}

func buildCohere(d *Dispatcher, cfg Config, prompt string, _ []byte) (*outboundRequest, error) {
	body, err := setAll([]byte(`{}`),
		"prompt", prompt,
		"model", settings.StringValue(settings.CohereModelKey, settings.DefaultCohereModel),
		"max_tokens", maxTokens(),
	)
	if err != nil {
		return nil, err
	}
	return &outboundRequest{url: d.cohereURL, headers: bearer(cfg.APIKey), body: body}, nil
}

func buildGoogleAI(_ *Dispatcher, cfg Config, prompt string, _ []byte) (*outboundRequest, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "prompt.text", prompt)
	if err != nil {
		return nil, fmt.Errorf("provider: build body: %w", err)
	}
	return &outboundRequest{url: util.JoinURL(cfg.TargetURL, "/generateText"), headers: bearer(cfg.APIKey), body: body}, nil
}

func buildAzureOpenAI(_ *Dispatcher, cfg Config, prompt string, _ []byte) (*outboundRequest, error) {
	body, err := chatBody(settings.StringValue(settings.AzureDeploymentKey, settings.DefaultAzureDeployment), prompt)
	if err != nil {
		return nil, err
	}
	version := settings.StringValue(settings.AzureAPIVersionKey, settings.DefaultAzureAPIVersion)
	target := util.JoinURL(cfg.TargetURL, "/chat/completions?api-version="+url.QueryEscape(version))
	return &outboundRequest{url: target, headers: bearer(cfg.APIKey), body: body}, nil
}

func buildHuggingFace(_ *Dispatcher, cfg Config, prompt string, _ []byte) (*outboundRequest, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "inputs", prompt)
	if err != nil {
		return nil, fmt.Errorf("provider: build body: %w", err)
	}
	return &outboundRequest{url: strings.TrimSpace(cfg.TargetURL), headers: bearer(cfg.APIKey), body: body}, nil
}

func buildCustom(_ *Dispatcher, cfg Config, _ string, rawBody []byte) (*outboundRequest, error) {
	body := rawBody
	if len(body) == 0 {
		body = []byte(`{}`)
	}
	headers := http.Header{}
	if cfg.APIKey != "" {
		headers = bearer(cfg.APIKey)
	}
	return &outboundRequest{url: strings.TrimSpace(cfg.TargetURL), headers: headers, body: body}, nil
}

// chatBody builds the OpenAI chat completion shape shared by openai and azure-openai.
func chatBody(model, prompt string) ([]byte, error) {
	return setAll([]byte(`{}`),
		"model", model,
		"messages.0.role", "system",
		"messages.0.content", settings.StringValue(settings.SystemPromptKey, settings.DefaultSystemPrompt),
		"messages.1.role", "user",
		"messages.1.content", prompt,
	)
}

// setAll applies path/value pairs in order.
func setAll(body []byte, pairs ...interface{}) ([]byte, error) {
	for i := 0; i+1 < len(pairs); i += 2 {
		path, _ := pairs[i].(string)
		var err error
		body, err = sjson.SetBytes(body, path, pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("provider: build body %s: %w", path, err)
		}
	}
	return body, nil
}

func maxTokens() int {
	if n := settings.IntValue(settings.MaxTokensKey, settings.DefaultMaxTokens); n > 0 {
		return n
	}
	return settings.DefaultMaxTokens
}

func bearer(key string) http.Header {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+key)
	return headers
}
