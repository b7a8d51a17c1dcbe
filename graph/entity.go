package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/brunobiangulo/kgmaker/ontology"
)

// Node is one end of an extracted edge: an entity category (or attribute
// type) and a concrete instance name (or attribute value).
type Node struct {
	Category string `json:"label"`
	Name     string `json:"name"`
}

// Edge is one extracted fact: two typed nodes and the label connecting them.
type Edge struct {
	Node1        Node   `json:"node_1"`
	Node2        Node   `json:"node_2"`
	Relationship string `json:"relationship"`
}

func (e Edge) String() string {
	return fmt.Sprintf("(%s:%s) -[%s]-> (%s:%s)",
		e.Node1.Category, e.Node1.Name, e.Relationship, e.Node2.Category, e.Node2.Name)
}

// TextUnit is one normalised, padded line of source text.
type TextUnit struct {
	Text   string
	Source string // file the line came from
	Line   int    // 1-based line number in Source
}

// Extractor turns text units into graph edges under an ontology. delay is
// the pause between successive model calls.
type Extractor interface {
	Extract(ctx context.Context, ont *ontology.Ontology, units []TextUnit, delay time.Duration) ([]Edge, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, ont *ontology.Ontology, units []TextUnit, delay time.Duration) ([]Edge, error)

func (f ExtractorFunc) Extract(ctx context.Context, ont *ontology.Ontology, units []TextUnit, delay time.Duration) ([]Edge, error) {
	return f(ctx, ont, units, delay)
}
