// Package kgmaker builds knowledge-graph triples from plain text.
//
// A Pipeline extracts typed edges from the text files in a directory under
// a relationship or attribute ontology, appends them to the per-kind triple
// spreadsheets, and later imports those spreadsheets into a graph database.
// Every run reports its progress as an ordered stream of Events.
package kgmaker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/kgmaker/graph"
	"github.com/brunobiangulo/kgmaker/llm"
	"github.com/brunobiangulo/kgmaker/ontology"
	"github.com/brunobiangulo/kgmaker/parser"
	"github.com/brunobiangulo/kgmaker/store"
	"github.com/brunobiangulo/kgmaker/triples"
)

// Pipeline wires the extraction capability, the spreadsheet exporter and
// the graph store together. It holds no per-run state and is safe to share.
type Pipeline struct {
	cfg        Config
	ontologies *ontology.Registry
	extractor  graph.Extractor
	parsers    *parser.Registry
	exporter   *triples.Exporter
	embedder   llm.Provider
	openGraph  func(store.Config) (*store.Store, error)
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithExtractor replaces the LLM-backed extractor.
func WithExtractor(x graph.Extractor) Option {
	return func(p *Pipeline) { p.extractor = x }
}

// WithOntologies replaces the built-in ontologies.
func WithOntologies(r *ontology.Registry) Option {
	return func(p *Pipeline) { p.ontologies = r }
}

// WithParsers replaces the input parser registry.
func WithParsers(r *parser.Registry) Option {
	return func(p *Pipeline) { p.parsers = r }
}

// WithEmbedder sets the provider used to embed node names on import.
func WithEmbedder(e llm.Provider) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// New creates a Pipeline. Unless overridden by options, extraction goes
// through cfg.Chat and uses the built-in wetland ontologies.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, openGraph: store.Open}
	for _, o := range opts {
		o(p)
	}

	if p.extractor == nil {
		chat, err := llm.NewProvider(cfg.Chat)
		if err != nil {
			return nil, fmt.Errorf("creating chat provider: %w", err)
		}
		p.extractor = graph.NewBuilder(chat, graph.BuilderConfig{
			Model:       cfg.Chat.Model,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		})
	}
	if p.embedder == nil && cfg.Embedding != nil {
		emb, err := llm.NewProvider(*cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		p.embedder = emb
	}
	if p.ontologies == nil {
		p.ontologies = ontology.DefaultRegistry()
	}
	if p.parsers == nil {
		p.parsers = parser.NewRegistry()
	}
	p.exporter = triples.NewExporter()
	if cfg.LockWait > 0 {
		p.exporter.LockWait = cfg.LockWait
	}

	slog.Debug("kgmaker: pipeline ready",
		"chat", cfg.Chat.Provider, "model", cfg.Chat.Model, "embeddings", p.embedder != nil)
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Ontologies returns the ontologies extraction and import dispatch on.
func (p *Pipeline) Ontologies() *ontology.Registry { return p.ontologies }

// OpenGraph opens the graph database described by gc, falling back to the
// configured one when gc has no URI.
func (p *Pipeline) OpenGraph(gc store.Config) (*store.Store, error) {
	if gc.URI == "" {
		gc = p.cfg.Graph
	}
	if gc.EmbeddingDim == 0 {
		gc.EmbeddingDim = p.cfg.Graph.EmbeddingDim
	}
	s, err := p.openGraph(gc)
	if err != nil {
		return nil, fmt.Errorf("opening graph database: %w", err)
	}
	return s, nil
}

// SimilarNodes embeds text and returns the k nearest nodes in g.
func (p *Pipeline) SimilarNodes(ctx context.Context, g *store.Store, text string, k int) ([]store.ScoredNode, error) {
	if p.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if k <= 0 {
		k = 10
	}
	vecs, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	return g.SimilarNodes(ctx, vecs[0], k)
}

// kindPhrase names the triples of kind in progress messages.
func kindPhrase(kind ontology.Kind) string {
	if kind == ontology.KindAttribute {
		return "entity attribute"
	}
	return "entity relationship"
}
