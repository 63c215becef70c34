package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/config"
)

// New constructs a Client for the configured provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.MaxTokens, logger)
	case "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.MaxTokens, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (expected \"anthropic\" or \"openai\")", cfg.Provider)
	}
}
