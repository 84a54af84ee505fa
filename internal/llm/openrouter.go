package llm

import "strings"

// OpenRouterBaseURL is the OpenAI-compatible endpoint of OpenRouter.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterProvider creates a provider backed by OpenRouter.
func NewOpenRouterProvider(apiKey string, model string) *OpenAIProvider {
	return NewCompatibleProvider("openrouter", apiKey, OpenRouterBaseURL, model)
}

// NewOllamaProvider creates a provider for a local Ollama server through its
// OpenAI-compatible /v1 API.
func NewOllamaProvider(host string, model string) *OpenAIProvider {
	return NewCompatibleProvider("ollama", "ollama", strings.TrimRight(host, "/")+"/v1", model)
}
