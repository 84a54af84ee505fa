package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ziadkadry99/auto-reply/internal/config"
	"github.com/ziadkadry99/auto-reply/internal/embeddings"
	"github.com/ziadkadry99/auto-reply/internal/energy"
	"github.com/ziadkadry99/auto-reply/internal/llm"
	"github.com/ziadkadry99/auto-reply/internal/mailer"
	"github.com/ziadkadry99/auto-reply/internal/retrieval"
	"github.com/ziadkadry99/auto-reply/internal/vectordb"
)

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, 768, cfg.BaseURL), nil
	default:
		// Providers without native embeddings fall back to OpenAI.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for embeddings (provider %s)", provider)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model), ""), nil
	}
}

// createLLMProviderFromConfig creates an LLM provider with retries and the
// configured rate limit.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(string(cfg.Provider), cfg.Model, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(llm.NewRetryProvider(p, 3, 2*time.Second), cfg.LLM.RequestsPerMinute), nil
}

// createImageEmbedder returns nil when image search is not configured.
func createImageEmbedder(cfg *config.Config) embeddings.ImageEmbedder {
	if cfg.ImageEmbedding.URL == "" {
		return nil
	}
	return embeddings.NewHTTPImageEmbedder(cfg.ImageEmbedding.URL, cfg.ImageEmbedding.Dimensions)
}

// openIndex creates the vector index and loads its persisted state.
func openIndex(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (*vectordb.ChromemIndex, error) {
	index := vectordb.NewChromemIndex(embedder)
	if err := index.Load(ctx, cfg.IndexDir()); err != nil {
		return nil, fmt.Errorf("loading index from %s: %w", cfg.IndexDir(), err)
	}
	return index, nil
}

// createSessionStore returns the retrieval session store and a function
// releasing it.
func createSessionStore(cfg *config.Config) (retrieval.SessionStore, func() error, error) {
	if cfg.Retrieval.SessionStore == config.SessionRedis {
		ttl := time.Duration(cfg.Retrieval.SessionTTLSeconds) * time.Second
		s, err := retrieval.NewRedisSessionStore(cfg.Retrieval.RedisURL, ttl)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return retrieval.NewMemorySessionStore(), func() error { return nil }, nil
}

// createMailer returns nil when no SMTP relay is configured.
func createMailer(cfg *config.Config) mailer.Mailer {
	if cfg.Email.Host == "" {
		return nil
	}
	return mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
}

func createEnergyTracker(cfg *config.Config) energy.Tracker {
	if !cfg.Energy.Enabled {
		return energy.Noop{}
	}
	return energy.NewEstimator(cfg.Energy.Watts, cfg.Energy.CarbonIntensity)
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `autoreply init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	setupLogging(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
