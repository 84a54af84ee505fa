package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Retrieval.FetchLimit != 100 {
		t.Errorf("expected default fetch_limit 100, got %d", cfg.Retrieval.FetchLimit)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected default top_k 5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.Lambda != 0.7 {
		t.Errorf("expected default lambda 0.7, got %f", cfg.Retrieval.Lambda)
	}
	if cfg.Retrieval.ClarifyThreshold != 3 {
		t.Errorf("expected default clarify_threshold 3, got %d", cfg.Retrieval.ClarifyThreshold)
	}
	if cfg.Retrieval.SessionStore != SessionMemory {
		t.Errorf("expected memory session store, got %q", cfg.Retrieval.SessionStore)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.autoreply.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenRouter
	original.Model = "openai/gpt-4o"
	original.Retrieval.TopK = 7
	original.Retrieval.Lambda = 0.5
	original.LLM.Capabilities = []string{"capture_customer", "search_products"}
	original.Channels.WhatsAppBotURL = "http://bot.local"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Retrieval.TopK != 7 {
		t.Errorf("top_k: got %d, want 7", loaded.Retrieval.TopK)
	}
	if loaded.Retrieval.Lambda != 0.5 {
		t.Errorf("lambda: got %f, want 0.5", loaded.Retrieval.Lambda)
	}
	if len(loaded.LLM.Capabilities) != 2 || loaded.LLM.Capabilities[0] != "capture_customer" {
		t.Errorf("capabilities: got %v", loaded.LLM.Capabilities)
	}
	if loaded.Channels.WhatsAppBotURL != "http://bot.local" {
		t.Errorf("whatsapp_bot_url: got %q", loaded.Channels.WhatsAppBotURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("AUTOREPLY_PROVIDER", "ollama")
	t.Setenv("AUTOREPLY_DATA_DIR", "/var/lib/autoreply")
	t.Setenv("AUTOREPLY_SERVER__PORT", "9090")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOllama {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOllama)
	}
	if loaded.DataDir != "/var/lib/autoreply" {
		t.Errorf("data_dir override failed: got %q", loaded.DataDir)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("nested override failed: got %d, want 9090", loaded.Server.Port)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"invalid provider", func(c *Config) { c.Provider = "invalid" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"invalid embedding provider", func(c *Config) { c.EmbeddingProvider = "openrouter" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"fetch below top_k", func(c *Config) { c.Retrieval.FetchLimit = 2 }},
		{"lambda above one", func(c *Config) { c.Retrieval.Lambda = 1.5 }},
		{"redis without url", func(c *Config) { c.Retrieval.SessionStore = SessionRedis }},
		{"unknown session store", func(c *Config) { c.Retrieval.SessionStore = "disk" }},
		{"no workers", func(c *Config) { c.Workers.Count = 0 }},
		{"no queue", func(c *Config) { c.Workers.QueueSize = 0 }},
		{"negative max delay", func(c *Config) { c.Workflows.MaxDelaySeconds = -1 }},
		{"no tool rounds", func(c *Config) { c.LLM.MaxToolRounds = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateRedisWithURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retrieval.SessionStore = SessionRedis
	cfg.Retrieval.RedisURL = "redis://localhost:6379/0"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDerivedValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	if got := cfg.DBPath(); got != filepath.Join("/data", "autoreply.db") {
		t.Errorf("DBPath = %q", got)
	}
	if got := cfg.IndexDir(); got != filepath.Join("/data", "index") {
		t.Errorf("IndexDir = %q", got)
	}
	if got := cfg.JobTimeout(); got != 120*time.Second {
		t.Errorf("JobTimeout = %v", got)
	}
	if got := cfg.MaxDelay(); got != 300*time.Second {
		t.Errorf("MaxDelay = %v", got)
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset(ProviderOllama)
	if p.EmbeddingModel != "nomic-embed-text" {
		t.Errorf("expected nomic-embed-text, got %q", p.EmbeddingModel)
	}

	// Unknown provider falls back.
	p = GetPreset("unknown")
	if p.Model != "gpt-4o-mini" {
		t.Errorf("expected fallback to gpt-4o-mini, got %q", p.Model)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOpenRouter, "OPENROUTER_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"search_products", []string{"search_products"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
