package settings

// DB config keys and defaults for settings.
const (
	// OpenAIModelKey overrides the model sent by the openai template.
	OpenAIModelKey = "OPENAI_MODEL"
	// DefaultOpenAIModel is the fallback openai model.
	DefaultOpenAIModel = "gpt-3.5-turbo"
	// AnthropicModelKey overrides the model sent by the anthropic template.
	AnthropicModelKey = "ANTHROPIC_MODEL"
	// DefaultAnthropicModel is the fallback anthropic model.
	DefaultAnthropicModel = "claude-2"
	// CohereModelKey overrides the model sent by the cohere template.
	CohereModelKey = "COHERE_MODEL"
	// DefaultCohereModel is the fallback cohere model.
	DefaultCohereModel = "command"
	// AzureDeploymentKey overrides the model field sent to azure-openai.
	AzureDeploymentKey = "AZURE_DEPLOYMENT"
	// DefaultAzureDeployment is the fallback azure-openai model.
	DefaultAzureDeployment = "gpt-35-turbo"
	// AzureAPIVersionKey overrides the api-version query parameter for azure-openai.
	AzureAPIVersionKey = "AZURE_API_VERSION"
	// DefaultAzureAPIVersion is the fallback azure-openai api version.
	DefaultAzureAPIVersion = "2024-02-15-preview"
	// SystemPromptKey overrides the system message of chat-shaped templates.
	SystemPromptKey = "SYSTEM_PROMPT"
	// DefaultSystemPrompt is the fallback system message.
	DefaultSystemPrompt = "You are a helpful assistant."
	// MaxTokensKey overrides the completion length for anthropic and cohere.
	MaxTokensKey = "MAX_TOKENS"
	// DefaultMaxTokens is the fallback completion length.
	DefaultMaxTokens = 300
	// InvocationRetentionDaysKey controls how long invocation rows are kept. Zero disables cleanup.
	InvocationRetentionDaysKey = "INVOCATION_RETENTION_DAYS"
	// DefaultInvocationRetentionDays is the fallback retention window.
	DefaultInvocationRetentionDays = 30
)

// knownKeys lists every key accepted by Upsert.
var knownKeys = map[string]struct{}{
	OpenAIModelKey:             {},
	AnthropicModelKey:          {},
	CohereModelKey:             {},
	AzureDeploymentKey:         {},
	AzureAPIVersionKey:         {},
	SystemPromptKey:            {},
	MaxTokensKey:               {},
	InvocationRetentionDaysKey: {},
}

// IsKnownKey reports whether key is a recognised setting.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}
