package kgmaker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brunobiangulo/kgmaker/llm"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Chat.Provider != "groq" || cfg.Chat.Model != "llama3-70b-8192" {
		t.Errorf("chat = %+v", cfg.Chat)
	}
	if cfg.Temperature != 0.1 || cfg.TopP != 0.5 {
		t.Errorf("sampling = %v/%v", cfg.Temperature, cfg.TopP)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kgmaker.yaml")
	data := `
chat:
  provider: ollama
  model: qwen2:7b
  base_url: http://localhost:11434
call_delay: 1500ms
input_formats: [txt, pdf]
graph:
  uri: sqlite:///data/wetland.db
  embedding_dim: 768
embedding:
  provider: ollama
  model: nomic-embed-text
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chat.Provider != "ollama" || cfg.Chat.Model != "qwen2:7b" {
		t.Errorf("chat = %+v", cfg.Chat)
	}
	if cfg.CallDelay != 1500*time.Millisecond {
		t.Errorf("call_delay = %v", cfg.CallDelay)
	}
	if len(cfg.InputFormats) != 2 || cfg.InputFormats[1] != "pdf" {
		t.Errorf("input_formats = %v", cfg.InputFormats)
	}
	if cfg.Graph.URI != "sqlite:///data/wetland.db" || cfg.Graph.EmbeddingDim != 768 {
		t.Errorf("graph = %+v", cfg.Graph)
	}
	// Fields absent from the file keep their defaults.
	if cfg.TopP != 0.5 {
		t.Errorf("top_p = %v", cfg.TopP)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("chat: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"KGMAKER_GRAPH_URI":      "sqlite://env.db",
		"KGMAKER_GRAPH_USERNAME": "admin",
		"KGMAKER_CALL_DELAY":     "2s",
		"GROQ_API_KEY":           "gsk-test",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Graph.URI != "sqlite://env.db" || cfg.Graph.Username != "admin" {
		t.Errorf("graph = %+v", cfg.Graph)
	}
	if cfg.CallDelay != 2*time.Second {
		t.Errorf("call_delay = %v", cfg.CallDelay)
	}
	if cfg.Chat.APIKey != "gsk-test" {
		t.Errorf("groq key fallback not applied: %q", cfg.Chat.APIKey)
	}

	// An explicit key wins over the provider fallback.
	env["KGMAKER_CHAT_API_KEY"] = "explicit"
	cfg = DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.Chat.APIKey != "explicit" {
		t.Errorf("api key = %q", cfg.Chat.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"temperature", func(c *Config) { c.Temperature = 3 }},
		{"top_p", func(c *Config) { c.TopP = 1.5 }},
		{"delay", func(c *Config) { c.CallDelay = -time.Second }},
		{"embedding without dim", func(c *Config) { c.Embedding = &llm.Config{Provider: "ollama"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
