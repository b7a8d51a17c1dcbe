package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"groq", "*llm.compatProvider"},
		{"openai", "*llm.compatProvider"},
		{"custom", "*llm.compatProvider"},
		{"ollama", "*llm.ollamaProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			if got := fmt.Sprintf("%T", p); got != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, got, tt.wantType)
			}
		})
	}
}

func TestNewProviderErrors(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil || err.Error() != "llm provider not specified" {
		t.Errorf("empty provider error = %v", err)
	}
	if _, err := NewProvider(Config{Provider: "doesnotexist"}); err == nil || err.Error() != "unknown llm provider: doesnotexist" {
		t.Errorf("unknown provider error = %v", err)
	}
}

func TestProviderDefaults(t *testing.T) {
	tests := []struct {
		provider  string
		wantURL   string
		wantModel string
	}{
		{"groq", "https://api.groq.com/openai", "llama3-70b-8192"},
		{"openai", "https://api.openai.com", "gpt-4o-mini"},
		{"custom", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider})
			if err != nil {
				t.Fatal(err)
			}
			cp := p.(*compatProvider)
			if cp.base.cfg.BaseURL != tt.wantURL {
				t.Errorf("BaseURL = %q, want %q", cp.base.cfg.BaseURL, tt.wantURL)
			}
			if cp.base.cfg.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", cp.base.cfg.Model, tt.wantModel)
			}
		})
	}

	p, _ := NewProvider(Config{Provider: "groq", BaseURL: "http://my-server:9999", Model: "m", APIKey: "k"})
	cp := p.(*compatProvider)
	if cp.base.cfg.BaseURL != "http://my-server:9999" || cp.base.cfg.Model != "m" || cp.base.cfg.APIKey != "k" {
		t.Errorf("explicit config overwritten: %+v", cp.base.cfg)
	}
}

func TestChatSendsSamplingAndAuth(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"model":"llama3-70b-8192","choices":[{"message":{"content":"{\"edges\":[]}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{Provider: "groq", BaseURL: srv.URL, APIKey: "secret"})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		Temperature:    0.1,
		TopP:           0.5,
		ResponseFormat: "json_object",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != `{"edges":[]}` || resp.TotalTokens != 5 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got.Model != "llama3-70b-8192" || got.TopP != 0.5 || got.Temperature != 0.1 {
		t.Errorf("unexpected request body: %+v", got)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Errorf("response_format missing: %+v", got.ResponseFormat)
	}
}

func TestDoPostRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := newOpenAICompatClient(Config{BaseURL: srv.URL, Model: "m"})
	c.retry = retryPolicy{maxRetries: 2, baseDelay: time.Millisecond, minRateDelay: time.Millisecond}

	resp, err := c.chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" || calls.Load() != 2 {
		t.Errorf("content=%q calls=%d", resp.Content, calls.Load())
	}
}

func TestDoPostNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newOpenAICompatClient(Config{BaseURL: srv.URL})
	_, err := c.chat(context.Background(), ChatRequest{})

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("expected StatusError 401, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("non-retryable status retried %d times", calls.Load())
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[2,2],"index":1},{"embedding":[1,1],"index":0}]}`)
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{Provider: "custom", BaseURL: srv.URL})
	embs, err := p.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if embs[0][0] != 1 || embs[1][0] != 2 {
		t.Errorf("embeddings out of order: %v", embs)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"embeddings":[[0.5,0.25]]}`)
	}))
	defer srv.Close()

	p := NewOllama(Config{BaseURL: srv.URL, Model: "nomic-embed-text"})
	embs, err := p.Embed(context.Background(), []string{"红树"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(embs) != 1 || embs[0][0] != 0.5 || embs[0][1] != 0.25 {
		t.Errorf("unexpected embeddings: %v", embs)
	}
}
