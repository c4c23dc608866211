// Package providers supplies toolloop.ModelClient implementations for the
// supported model backends, plus an environment-driven factory.
package providers

import (
	"fmt"
	"os"

	"github.com/embabel/goalrun/internal/toolloop"
)

// NewClientFromEnv creates a model client based on environment variables.
// LLM_PROVIDER selects the backend; each backend reads its own key and
// model variables. Returns the client and the resolved model name.
func NewClientFromEnv() (toolloop.ModelClient, string, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o-mini"
		}
		// For OpenAI-compatible gateways
		baseURL := os.Getenv("OPENAI_BASE_URL")
		return NewOpenAIClient(apiKey, model, baseURL), model, nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		model := os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-3-5-sonnet-20241022"
		}
		return NewAnthropicClient(apiKey, model), model, nil

	case "lmstudio":
		// Local OpenAI-compatible server; any key is accepted.
		baseURL := os.Getenv("LMSTUDIO_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:1234/v1"
		}
		model := os.Getenv("LMSTUDIO_MODEL")
		if model == "" {
			model = "local-model"
		}
		return NewOpenAIClient("lmstudio", model, baseURL), model, nil

	default:
		return nil, "", fmt.Errorf("unknown LLM_PROVIDER %q (supported: openai, anthropic, lmstudio)", provider)
	}
}
