package kgmaker

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/kgmaker/llm"
	"github.com/brunobiangulo/kgmaker/store"
)

// Config holds all configuration for a Pipeline. It is read once and then
// passed by value; nothing in the pipeline mutates it.
type Config struct {
	// Chat is the model that extracts edges from text.
	Chat llm.Config `json:"chat" yaml:"chat"`

	// Embedding is optional. When set, imported node names are embedded
	// and become searchable with SimilarNodes.
	Embedding *llm.Config `json:"embedding,omitempty" yaml:"embedding,omitempty"`

	// Sampling parameters for extraction.
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopP        float64 `json:"top_p" yaml:"top_p"`

	// CallDelay is the pause between successive extraction calls.
	CallDelay time.Duration `json:"call_delay" yaml:"call_delay"`

	// InputFormats lists the file extensions read as input text.
	InputFormats []string `json:"input_formats" yaml:"input_formats"`

	// Graph is the graph database the importer writes to.
	Graph store.Config `json:"graph" yaml:"graph"`

	// LockWait bounds how long an export waits for another writer of the
	// same spreadsheet.
	LockWait time.Duration `json:"lock_wait" yaml:"lock_wait"`
}

// DefaultConfig returns a Config using Groq for extraction and a local
// SQLite file for the graph.
func DefaultConfig() Config {
	return Config{
		Chat: llm.Config{
			Provider: "groq",
			Model:    "llama3-70b-8192",
			Timeout:  2 * time.Minute,
		},
		Temperature:  0.1,
		TopP:         0.5,
		CallDelay:    0,
		InputFormats: []string{"txt"},
		Graph: store.Config{
			URI: "sqlite://kgmaker.db",
		},
		LockWait: 30 * time.Second,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from KGMAKER_* variables. Provider API keys
// fall back to GROQ_API_KEY and OPENAI_API_KEY.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Chat.Provider, "KGMAKER_CHAT_PROVIDER")
	set(&c.Chat.Model, "KGMAKER_CHAT_MODEL")
	set(&c.Chat.BaseURL, "KGMAKER_CHAT_BASE_URL")
	set(&c.Chat.APIKey, "KGMAKER_CHAT_API_KEY")
	set(&c.Graph.URI, "KGMAKER_GRAPH_URI")
	set(&c.Graph.Username, "KGMAKER_GRAPH_USERNAME")
	set(&c.Graph.Password, "KGMAKER_GRAPH_PASSWORD")

	if v := getenv("KGMAKER_CALL_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CallDelay = d
		}
	}
	if v := getenv("KGMAKER_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Graph.EmbeddingDim = n
		}
	}

	if c.Chat.APIKey == "" {
		switch c.Chat.Provider {
		case "groq":
			c.Chat.APIKey = getenv("GROQ_API_KEY")
		case "openai":
			c.Chat.APIKey = getenv("OPENAI_API_KEY")
		}
	}
	if c.Embedding != nil && c.Embedding.APIKey == "" && c.Embedding.Provider == "openai" {
		c.Embedding.APIKey = getenv("OPENAI_API_KEY")
	}
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range", ErrInvalidConfig, c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p %v out of range", ErrInvalidConfig, c.TopP)
	}
	if c.CallDelay < 0 {
		return fmt.Errorf("%w: negative call_delay", ErrInvalidConfig)
	}
	if c.Embedding != nil && c.Graph.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding provider set but graph.embedding_dim is 0", ErrInvalidConfig)
	}
	return nil
}
