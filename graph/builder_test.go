package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brunobiangulo/kgmaker/llm"
	"github.com/brunobiangulo/kgmaker/ontology"
)

// fakeChat answers each chat call with the next canned response.
type fakeChat struct {
	mu        sync.Mutex
	responses []string
	errAt     int // 1-based call index that fails; 0 = never
	calls     []llm.ChatRequest
	callTimes []time.Time
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	f.callTimes = append(f.callTimes, time.Now())
	n := len(f.calls)
	if f.errAt == n {
		return nil, errors.New("upstream unavailable")
	}
	if n > len(f.responses) {
		return &llm.ChatResponse{Content: `{"edges": []}`}, nil
	}
	return &llm.ChatResponse{Content: f.responses[n-1]}, nil
}

func (f *fakeChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not supported")
}

func units(lines ...string) []TextUnit {
	out := make([]TextUnit, len(lines))
	for i, l := range lines {
		out[i] = TextUnit{Text: "\n" + l + "\n", Source: "plants.txt", Line: i + 1}
	}
	return out
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain object", `{"edges": []}`, `{"edges": []}`, false},
		{"fenced", "```json\n{\"edges\": []}\n```", `{"edges": []}`, false},
		{"chatter around object", `Sure! {"edges": []} Hope that helps.`, `{"edges": []}`, false},
		{"bare array", `[{"relationship": "生长"}]`, `[{"relationship": "生长"}]`, false},
		{"no json", "nothing here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuilderExtractRelationships(t *testing.T) {
	chat := &fakeChat{responses: []string{
		`{"edges": [{"node_1": {"label": "植物", "name": "红树"}, "node_2": {"label": "滩涂", "name": "滩涂"}, "relationship": "生长"}]}`,
		"```json\n[{\"node_1\": {\"label\": \"植物\", \"name\": \"芦苇\"}, \"node_2\": {\"label\": \"群落\", \"name\": \"盐沼群落\"}, \"relationship\": \"优势种\"}]\n```",
	}}
	b := NewBuilder(chat, BuilderConfig{Model: "test", Temperature: 0.1, TopP: 0.5})

	edges, err := b.Extract(context.Background(), ontology.WetlandRelationships(),
		units("红树 生长 滩涂", "芦苇 优势种 盐沼群落"), 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %v", len(edges), edges)
	}
	want := Edge{Node1: Node{"植物", "红树"}, Node2: Node{"滩涂", "滩涂"}, Relationship: "生长"}
	if edges[0] != want {
		t.Errorf("edge[0] = %v, want %v", edges[0], want)
	}
	if edges[1].Relationship != "优势种" || edges[1].Node2.Name != "盐沼群落" {
		t.Errorf("edge[1] = %v", edges[1])
	}

	if len(chat.calls) != 2 {
		t.Fatalf("expected one call per unit, got %d", len(chat.calls))
	}
	req := chat.calls[0]
	if req.TopP != 0.5 || req.Temperature != 0.1 || req.ResponseFormat != "json_object" {
		t.Errorf("unexpected request settings: %+v", req)
	}
	if !strings.Contains(req.Messages[0].Content, "优势种") {
		t.Error("system prompt should list relationship labels")
	}
	if req.Messages[1].Content != "\n红树 生长 滩涂\n" {
		t.Errorf("user message = %q", req.Messages[1].Content)
	}
}

func TestBuilderDropsEdgesOutsideOntology(t *testing.T) {
	chat := &fakeChat{responses: []string{`{"edges": [
		{"node_1": {"label": "植物", "name": "红树"}, "node_2": {"label": "滩涂", "name": "滩涂"}, "relationship": "吃"},
		{"node_1": {"label": "动物", "name": "螃蟹"}, "node_2": {"label": "滩涂", "name": "滩涂"}, "relationship": "生长"},
		{"node_1": {"label": "植物", "name": ""}, "node_2": {"label": "滩涂", "name": "滩涂"}, "relationship": "生长"},
		{"node_1": {"label": " 植物 ", "name": " 碱蓬 "}, "node_2": {"label": "滩涂", "name": "潮滩"}, "relationship": "生长"}
	]}`}}
	b := NewBuilder(chat, BuilderConfig{})

	edges, err := b.Extract(context.Background(), ontology.WetlandRelationships(), units("x"), 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 surviving edge, got %d: %v", len(edges), edges)
	}
	if edges[0].Node1 != (Node{"植物", "碱蓬"}) {
		t.Errorf("fields not trimmed: %+v", edges[0].Node1)
	}
}

func TestBuilderAttributeDefaultsTailCategory(t *testing.T) {
	chat := &fakeChat{responses: []string{
		`{"edges": [{"node_1": {"label": "植物", "name": "芦苇"}, "node_2": {"label": "", "name": "45-100厘米"}, "relationship": "高度"}]}`,
	}}
	b := NewBuilder(chat, BuilderConfig{})

	edges, err := b.Extract(context.Background(), ontology.WetlandAttributes(), units("芦苇 高度 45-100厘米"), 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(edges) != 1 || edges[0].Node2.Category != "高度" {
		t.Fatalf("unexpected edges: %v", edges)
	}
	if !strings.Contains(chat.calls[0].Messages[0].Content, "ATTRIBUTES") {
		t.Error("attribute ontology should use the attribute prompt")
	}
}

func TestBuilderFailureNamesLine(t *testing.T) {
	chat := &fakeChat{errAt: 2}
	b := NewBuilder(chat, BuilderConfig{})

	_, err := b.Extract(context.Background(), ontology.WetlandRelationships(), units("a", "b", "c"), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "plants.txt line 2") {
		t.Errorf("error should name the failing line: %v", err)
	}
	if len(chat.calls) != 2 {
		t.Errorf("expected extraction to stop after failure, got %d calls", len(chat.calls))
	}
}

func TestBuilderDelayBetweenCalls(t *testing.T) {
	chat := &fakeChat{}
	b := NewBuilder(chat, BuilderConfig{})
	delay := 30 * time.Millisecond

	if _, err := b.Extract(context.Background(), ontology.WetlandRelationships(), units("a", "b"), delay); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if gap := chat.callTimes[1].Sub(chat.callTimes[0]); gap < delay {
		t.Errorf("calls %v apart, want at least %v", gap, delay)
	}
}

func TestBuilderDelayHonoursCancellation(t *testing.T) {
	chat := &fakeChat{}
	b := NewBuilder(chat, BuilderConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Extract(ctx, ontology.WetlandRelationships(), units("a", "b"), time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
