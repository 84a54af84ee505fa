package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOllama     ProviderType = "ollama"
)

// SessionBackend selects where retrieval sessions are cached.
type SessionBackend string

const (
	SessionMemory SessionBackend = "memory"
	SessionRedis  SessionBackend = "redis"
)

// Config is the top-level autoreply configuration, corresponding to .autoreply.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	BaseURL           string       `yaml:"base_url" koanf:"base_url"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`

	LLM            LLMConfig            `yaml:"llm" koanf:"llm"`
	Server         ServerConfig         `yaml:"server" koanf:"server"`
	Retrieval      RetrievalConfig      `yaml:"retrieval" koanf:"retrieval"`
	Workflows      WorkflowConfig       `yaml:"workflows" koanf:"workflows"`
	Workers        WorkerConfig         `yaml:"workers" koanf:"workers"`
	Channels       ChannelConfig        `yaml:"channels" koanf:"channels"`
	Email          EmailConfig          `yaml:"email" koanf:"email"`
	ImageEmbedding ImageEmbeddingConfig `yaml:"image_embedding" koanf:"image_embedding"`
	Energy         EnergyConfig         `yaml:"energy" koanf:"energy"`
	Log            LogConfig            `yaml:"log" koanf:"log"`
}

// LLMConfig tunes generation calls.
type LLMConfig struct {
	MaxToolRounds     int     `yaml:"max_tool_rounds" koanf:"max_tool_rounds"`
	Temperature       float64 `yaml:"temperature" koanf:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	// Capabilities are the tools offered to the model when a company has
	// not configured its own.
	Capabilities []string `yaml:"capabilities" koanf:"capabilities"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" koanf:"host"`
	Port int    `yaml:"port" koanf:"port"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// RetrievalConfig holds the knowledge retrieval tuning knobs.
type RetrievalConfig struct {
	FetchLimit       int            `yaml:"fetch_limit" koanf:"fetch_limit"`
	TopK             int            `yaml:"top_k" koanf:"top_k"`
	Lambda           float64        `yaml:"lambda" koanf:"lambda"`
	ClarifyThreshold int            `yaml:"clarify_threshold" koanf:"clarify_threshold"`
	SessionStore     SessionBackend `yaml:"session_store" koanf:"session_store"`
	RedisURL         string         `yaml:"redis_url" koanf:"redis_url"`
	// SessionTTLSeconds of 0 keeps redis sessions until invalidated.
	SessionTTLSeconds int `yaml:"session_ttl_seconds" koanf:"session_ttl_seconds"`
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	MaxDelaySeconds int    `yaml:"max_delay_seconds" koanf:"max_delay_seconds"`
	FilesDir        string `yaml:"files_dir" koanf:"files_dir"`
}

// WorkerConfig sizes the inbound message dispatcher.
type WorkerConfig struct {
	Count             int `yaml:"count" koanf:"count"`
	QueueSize         int `yaml:"queue_size" koanf:"queue_size"`
	JobTimeoutSeconds int `yaml:"job_timeout_seconds" koanf:"job_timeout_seconds"`
}

// ChannelConfig holds settings for the outbound channel adapters.
type ChannelConfig struct {
	WhatsAppBotURL  string `yaml:"whatsapp_bot_url" koanf:"whatsapp_bot_url"`
	PublicBaseURL   string `yaml:"public_base_url" koanf:"public_base_url"`
	WACAVerifyToken string `yaml:"waca_verify_token" koanf:"waca_verify_token"`
	WACAGraphURL    string `yaml:"waca_graph_url" koanf:"waca_graph_url"`
}

// EmailConfig configures the SMTP mailer used by send_email actions.
type EmailConfig struct {
	Host     string `yaml:"host" koanf:"host"`
	Port     int    `yaml:"port" koanf:"port"`
	Username string `yaml:"username" koanf:"username"`
	Password string `yaml:"password" koanf:"password"`
	From     string `yaml:"from" koanf:"from"`
}

// ImageEmbeddingConfig points at the image embedding service. Image search
// is disabled when URL is empty.
type ImageEmbeddingConfig struct {
	URL        string `yaml:"url" koanf:"url"`
	Dimensions int    `yaml:"dimensions" koanf:"dimensions"`
	// MatchField is the metadata field of an image match that names the
	// catalog item it belongs to.
	MatchField string `yaml:"match_field" koanf:"match_field"`
}

// EnergyConfig parameterises the wall-clock energy estimator.
type EnergyConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled"`
	// Watts is the average power draw attributed to a run.
	Watts float64 `yaml:"watts" koanf:"watts"`
	// CarbonIntensity is kg CO2 per kWh.
	CarbonIntensity float64 `yaml:"carbon_intensity" koanf:"carbon_intensity"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
