package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/brunobiangulo/kgmaker/llm"
	"github.com/brunobiangulo/kgmaker/ontology"
)

// relationshipPrompt asks for edges between typed entities. The two %s
// verbs receive the entity section and the allowed relationship names.
const relationshipPrompt = `You are an expert at creating knowledge graphs from text.
Extract every fact in the text as a pair of entities and the relationship between them.

ENTITY CATEGORIES (category: known instances):
%s

RELATIONSHIPS (use exactly one of these values):
%s

Return a JSON object with exactly one key:
  "edges" : array of {"node_1": {"label": string, "name": string}, "node_2": {"label": string, "name": string}, "relationship": string}

Rules:
- "label" must be one of the entity categories above.
- "name" is the concrete instance as written in the text.
- Only include facts clearly supported by the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLE:

Input: "红树 生长 滩涂"
Output:
{"edges": [{"node_1": {"label": "植物", "name": "红树"}, "node_2": {"label": "滩涂", "name": "滩涂"}, "relationship": "生长"}]}
`

// attributePrompt asks for entity attribute values. node_2.label carries
// the attribute name and node_2.name its value.
const attributePrompt = `You are an expert at creating knowledge graphs from text.
Extract every attribute of an entity stated in the text.

ENTITY CATEGORIES (category: known instances):
%s

ATTRIBUTES (attribute: example values):
%s

Return a JSON object with exactly one key:
  "edges" : array of {"node_1": {"label": string, "name": string}, "node_2": {"label": string, "name": string}, "relationship": string}

Rules:
- node_1.label must be one of the entity categories above and node_1.name the entity.
- node_2.label and "relationship" must both be the attribute name.
- node_2.name is the attribute value as written in the text.
- Only include attributes clearly supported by the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLE:

Input: "芦苇 高度 45-100厘米"
Output:
{"edges": [{"node_1": {"label": "植物", "name": "芦苇"}, "node_2": {"label": "高度", "name": "45-100厘米"}, "relationship": "高度"}]}
`

// perUnitTimeout caps how long a single text unit extraction can take.
const perUnitTimeout = 90 * time.Second

// BuilderConfig tunes the model calls made by a Builder.
type BuilderConfig struct {
	Model       string
	Temperature float64
	TopP        float64
}

// Builder is the LLM-backed Extractor. It makes one chat call per text unit,
// in order, pausing for the requested delay between calls.
type Builder struct {
	chat llm.Provider
	cfg  BuilderConfig
}

// NewBuilder creates a graph builder on top of a chat provider.
func NewBuilder(chat llm.Provider, cfg BuilderConfig) *Builder {
	return &Builder{chat: chat, cfg: cfg}
}

// Extract implements Extractor. The first unit that fails aborts the call;
// the error names the source line.
func (b *Builder) Extract(ctx context.Context, ont *ontology.Ontology, units []TextUnit, delay time.Duration) ([]Edge, error) {
	if ont == nil {
		return nil, fmt.Errorf("graph.Extract: nil ontology")
	}
	system := systemPrompt(ont)

	var edges []Edge
	for i, u := range units {
		if i > 0 && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		unitCtx, cancel := context.WithTimeout(ctx, perUnitTimeout)
		got, err := b.extractUnit(unitCtx, ont, system, u)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", u.Source, u.Line, err)
		}
		edges = append(edges, got...)
	}
	return edges, nil
}

func (b *Builder) extractUnit(ctx context.Context, ont *ontology.Ontology, system string, u TextUnit) ([]Edge, error) {
	resp, err := b.chat.Chat(ctx, llm.ChatRequest{
		Model: b.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: u.Text},
		},
		Temperature:    b.cfg.Temperature,
		TopP:           b.cfg.TopP,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("extraction llm chat: %w", err)
	}

	raw, err := parseEdges(resp.Content)
	if err != nil {
		return nil, err
	}

	edges := make([]Edge, 0, len(raw))
	for _, e := range raw {
		e, ok := normalizeEdge(ont, e)
		if !ok {
			slog.Debug("graph: dropping edge outside ontology",
				"source", u.Source, "line", u.Line, "edge", e.String())
			continue
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// systemPrompt renders the ontology into the prompt for its kind.
func systemPrompt(ont *ontology.Ontology) string {
	var cats strings.Builder
	for _, c := range ont.Categories() {
		fmt.Fprintf(&cats, "- %s: %s\n", c.Name, strings.Join(c.Instances, ", "))
	}

	var labels strings.Builder
	for _, l := range ont.Labels() {
		if len(l.Examples) > 0 {
			fmt.Fprintf(&labels, "- %s: %s\n", l.Name, strings.Join(l.Examples, " | "))
		} else {
			fmt.Fprintf(&labels, "- %s\n", l.Name)
		}
	}

	if ont.Kind() == ontology.KindAttribute {
		return fmt.Sprintf(attributePrompt, cats.String(), labels.String())
	}
	return fmt.Sprintf(relationshipPrompt, cats.String(), labels.String())
}

// normalizeEdge trims fields and checks the edge against the ontology.
func normalizeEdge(ont *ontology.Ontology, e Edge) (Edge, bool) {
	e.Node1.Category = strings.TrimSpace(e.Node1.Category)
	e.Node1.Name = strings.TrimSpace(e.Node1.Name)
	e.Node2.Category = strings.TrimSpace(e.Node2.Category)
	e.Node2.Name = strings.TrimSpace(e.Node2.Name)
	e.Relationship = strings.TrimSpace(e.Relationship)

	if e.Node1.Name == "" || e.Node2.Name == "" || e.Relationship == "" {
		return e, false
	}
	if !ont.HasLabel(e.Relationship) || !ont.HasCategory(e.Node1.Category) {
		return e, false
	}

	if ont.Kind() == ontology.KindAttribute {
		if e.Node2.Category == "" {
			e.Node2.Category = e.Relationship
		}
		return e, ont.HasLabel(e.Node2.Category)
	}
	return e, ont.HasCategory(e.Node2.Category)
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON finds the JSON payload in a model response. It handles
// markdown fences and chatter before or after the payload, and accepts a
// bare array as well as an object.
func extractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw, nil
	}

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON found in response")
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end <= start {
		return "", fmt.Errorf("no JSON found in response")
	}
	return raw[start : end+1], nil
}

type edgeResult struct {
	Edges []Edge `json:"edges"`
}

// parseEdges decodes either {"edges": [...]} or a bare [...] list.
func parseEdges(content string) ([]Edge, error) {
	jsonStr, err := extractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("parsing extraction result: %w", err)
	}

	if strings.HasPrefix(jsonStr, "[") {
		var edges []Edge
		if err := json.Unmarshal([]byte(jsonStr), &edges); err != nil {
			return nil, fmt.Errorf("unmarshalling extraction result: %w", err)
		}
		return edges, nil
	}

	var result edgeResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("unmarshalling extraction result: %w", err)
	}
	return result.Edges, nil
}
