package config

// ModelPreset describes the models to use with a provider.
type ModelPreset struct {
	Model          string
	EmbeddingModel string
}

// modelPresets maps each provider to its default model choices.
var modelPresets = map[ProviderType]ModelPreset{
	ProviderOpenAI:     {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOpenRouter: {Model: "openai/gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama:     {Model: "llama3.1", EmbeddingModel: "nomic-embed-text"},
}

// DefaultCapabilities are the generator tools enabled when nothing else is configured.
var DefaultCapabilities = []string{"search_products", "capture_customer"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".autoreply",
		LLM: LLMConfig{
			MaxToolRounds:     4,
			Temperature:       0.3,
			RequestsPerMinute: 0,
			Capabilities:      append([]string(nil), DefaultCapabilities...),
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			TimeoutSeconds: 60,
		},
		Retrieval: RetrievalConfig{
			FetchLimit:       100,
			TopK:             5,
			Lambda:           0.7,
			ClarifyThreshold: 3,
			SessionStore:     SessionMemory,
		},
		Workflows: WorkflowConfig{
			MaxDelaySeconds: 300,
			FilesDir:        "files/workflows",
		},
		Workers: WorkerConfig{
			Count:             8,
			QueueSize:         64,
			JobTimeoutSeconds: 120,
		},
		Channels: ChannelConfig{
			WACAGraphURL: "https://graph.facebook.com/v19.0",
		},
		Email: EmailConfig{
			Port: 587,
		},
		ImageEmbedding: ImageEmbeddingConfig{
			Dimensions: 512,
			MatchField: "product_id",
		},
		Energy: EnergyConfig{
			Enabled:         true,
			Watts:           45,
			CarbonIntensity: 0.475,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// GetPreset returns the model preset for the given provider. Returns the
// OpenAI preset if the provider is not known.
func GetPreset(provider ProviderType) ModelPreset {
	if preset, ok := modelPresets[provider]; ok {
		return preset
	}
	return modelPresets[ProviderOpenAI]
}
