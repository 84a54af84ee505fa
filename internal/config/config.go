package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "AUTOREPLY_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (AUTOREPLY_*). Nested keys use a double
// underscore: AUTOREPLY_SERVER__PORT -> server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI:     true,
	ProviderOpenRouter: true,
	ProviderOllama:     true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, openrouter, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.EmbeddingProvider != "" && c.EmbeddingProvider != ProviderOpenAI && c.EmbeddingProvider != ProviderOllama {
		return fmt.Errorf("invalid embedding_provider %q: must be openai or ollama", c.EmbeddingProvider)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	r := c.Retrieval
	if r.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if r.FetchLimit < r.TopK {
		return fmt.Errorf("retrieval.fetch_limit must be at least retrieval.top_k")
	}
	if r.Lambda < 0 || r.Lambda > 1 {
		return fmt.Errorf("retrieval.lambda must be between 0 and 1")
	}
	if r.ClarifyThreshold < 0 {
		return fmt.Errorf("retrieval.clarify_threshold must be non-negative")
	}
	switch r.SessionStore {
	case SessionMemory, "":
	case SessionRedis:
		if r.RedisURL == "" {
			return fmt.Errorf("retrieval.redis_url is required for the redis session store")
		}
	default:
		return fmt.Errorf("invalid retrieval.session_store %q: must be memory or redis", r.SessionStore)
	}

	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be positive")
	}
	if c.Workers.QueueSize <= 0 {
		return fmt.Errorf("workers.queue_size must be positive")
	}
	if c.Workers.JobTimeoutSeconds < 0 {
		return fmt.Errorf("workers.job_timeout_seconds must be non-negative")
	}
	if c.Workflows.MaxDelaySeconds < 0 {
		return fmt.Errorf("workflows.max_delay_seconds must be non-negative")
	}
	if c.LLM.MaxToolRounds <= 0 {
		return fmt.Errorf("llm.max_tool_rounds must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// DBPath returns the location of the sqlite database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "autoreply.db")
}

// IndexDir returns the directory holding the persisted vector index.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// JobTimeout returns the per-message processing deadline.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Workers.JobTimeoutSeconds) * time.Second
}

// MaxDelay returns the cap applied to workflow delay blocks.
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Workflows.MaxDelaySeconds) * time.Second
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
