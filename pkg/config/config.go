package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for cubeguard.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (API keys,
// tokens) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"5002"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Semantic layer (Cube) API access
	Cube CubeConfig `yaml:"cube"`

	// LLM endpoint used for query generation and error fixing
	LLM LLMConfig `yaml:"llm"`

	// Join-path validation thresholds
	Validator ValidatorConfig `yaml:"validator"`
}

// CubeConfig holds semantic-layer API settings.
type CubeConfig struct {
	// APIURL is the Cube REST API base, e.g. "http://localhost:4000/cubejs-api/v1".
	APIURL string `yaml:"api_url" env:"CUBE_API_URL" env-default:"http://localhost:4000/cubejs-api/v1"`
	// APIToken is the Cube API auth token.
	APIToken string `yaml:"-" env:"CUBE_API_TOKEN"` // Secret - not in YAML
	// TimeoutSeconds bounds metadata and query requests.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"CUBE_TIMEOUT_SECONDS" env-default:"60"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	// Provider selects the client implementation: "anthropic" or "openai".
	// "openai" covers any OpenAI-compatible endpoint.
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	// BaseURL overrides the provider's default endpoint (optional).
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model   string `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey  string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	MaxTokens   int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
}

// IsAvailable returns true if an LLM endpoint is configured.
func (c *LLMConfig) IsAvailable() bool {
	return c.Model != ""
}

// ValidatorConfig holds join-path validation thresholds. The defaults are
// the reference behavior; deployments tune them per schema shape.
type ValidatorConfig struct {
	// MaxJoinPathHops is the longest join path (in hops) still considered a
	// meaningful business query. Longer paths are rejected as probable
	// semantic errors, not executed as valid-but-slow queries.
	MaxJoinPathHops int `yaml:"max_join_path_hops" env:"VALIDATOR_MAX_JOIN_PATH_HOPS" env-default:"3"`
	// ShortPathHops is the longest path that passes without a warning.
	ShortPathHops int `yaml:"short_path_hops" env:"VALIDATOR_SHORT_PATH_HOPS" env-default:"1"`
	// MinRelationshipConfidence excludes low-confidence relationships from
	// path-finding at graph build time.
	MinRelationshipConfidence float64 `yaml:"min_relationship_confidence" env:"VALIDATOR_MIN_RELATIONSHIP_CONFIDENCE" env-default:"0.5"`
	// MaxSuggestions caps the alternatives returned for an invalid query.
	MaxSuggestions int `yaml:"max_suggestions" env:"VALIDATOR_MAX_SUGGESTIONS" env-default:"3"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists, configuration comes from the
// environment alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validator.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validator configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that thresholds are internally consistent.
func (c *ValidatorConfig) Validate() error {
	if c.ShortPathHops < 0 {
		return fmt.Errorf("short_path_hops must be >= 0, got %d", c.ShortPathHops)
	}
	if c.MaxJoinPathHops < c.ShortPathHops {
		return fmt.Errorf("max_join_path_hops (%d) must be >= short_path_hops (%d)",
			c.MaxJoinPathHops, c.ShortPathHops)
	}
	if c.MinRelationshipConfidence < 0 || c.MinRelationshipConfidence > 1 {
		return fmt.Errorf("min_relationship_confidence must be in [0, 1], got %g",
			c.MinRelationshipConfidence)
	}
	if c.MaxSuggestions < 0 {
		return fmt.Errorf("max_suggestions must be >= 0, got %d", c.MaxSuggestions)
	}
	return nil
}

// DefaultValidatorConfig returns the reference thresholds, for callers that
// construct a validator without going through Load.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxJoinPathHops:           3,
		ShortPathHops:             1,
		MinRelationshipConfidence: 0.5,
		MaxSuggestions:            3,
	}
}
