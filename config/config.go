// Package config loads credentials and service settings from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/poiesic/minutes/ai"
)

// ErrConfigurationMissing indicates a required credential or setting is
// absent. It aborts a run before any work starts.
var ErrConfigurationMissing = errors.New("configuration missing")

// Environment variable names that can be required.
const (
	KeyFirefliesAPIKey = "FIREFLIES_API_KEY"
	KeyOpenAIAPIKey    = "OPENAI_API_KEY"
	KeyPineconeAPIKey  = "PINECONE_API_KEY"
	KeyPineconeHost    = "PINECONE_HOST"
)

type Config struct {
	FirefliesAPIKey string `env:"FIREFLIES_API_KEY"`
	FirefliesAPI    string `env:"FIREFLIES_API" envDefault:"rest"`

	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	EmbeddingHost  string `env:"EMBEDDING_HOST" envDefault:"https://api.openai.com/v1"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	Dimensions     int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1024"`

	PineconeAPIKey    string `env:"PINECONE_API_KEY"`
	PineconeHost      string `env:"PINECONE_HOST"`
	PineconeNamespace string `env:"PINECONE_NAMESPACE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile        string
	FirefliesAPI   string
	EmbeddingHost  string
	EmbeddingModel string
	Dimensions     int
	Namespace      string
	LogLevel       string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
// Credentials are not checked here; call Require for what a command needs.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	} else if overrides.EnvFile != "" {
		return nil, fmt.Errorf("%w: env file %s: %w", ErrConfigurationMissing, envFile, err)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.FirefliesAPI != "" {
		cfg.FirefliesAPI = overrides.FirefliesAPI
	}
	if overrides.EmbeddingHost != "" {
		cfg.EmbeddingHost = overrides.EmbeddingHost
	}
	if overrides.EmbeddingModel != "" {
		cfg.EmbeddingModel = overrides.EmbeddingModel
	}
	if overrides.Dimensions > 0 {
		cfg.Dimensions = overrides.Dimensions
	}
	if overrides.Namespace != "" {
		cfg.PineconeNamespace = overrides.Namespace
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	return cfg, nil
}

// Require returns ErrConfigurationMissing naming every key in keys that
// has no value.
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		KeyFirefliesAPIKey: c.FirefliesAPIKey,
		KeyOpenAIAPIKey:    c.OpenAIAPIKey,
		KeyPineconeAPIKey:  c.PineconeAPIKey,
		KeyPineconeHost:    c.PineconeHost,
	}

	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

// AIConfig returns the validated embedding backend configuration.
func (c *Config) AIConfig() (*ai.Config, error) {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithDimensions(c.Dimensions),
		ai.WithAPIKey(c.OpenAIAPIKey),
	)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigurationMissing, err)
	}
	return cfg, nil
}
