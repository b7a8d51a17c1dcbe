// Package ontology defines the two fixed schemas that scope triple extraction:
// entity-relationship and entity-attribute.
package ontology

import (
	"fmt"
	"strings"

	"golang.org/x/text/width"
)

// Kind identifies which of the two ontology variants a value belongs to.
// The string form doubles as the label column name in exported spreadsheets.
type Kind string

const (
	KindRelationship Kind = "relationship"
	KindAttribute    Kind = "attribute"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindRelationship || k == KindAttribute
}

// ParseKind accepts the canonical kind names plus the short ER/EA forms.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relationship", "relationships", "er":
		return KindRelationship, nil
	case "attribute", "attributes", "ea":
		return KindAttribute, nil
	default:
		return "", fmt.Errorf("unknown ontology kind: %q", s)
	}
}

// Category is one entity type together with its known instance names.
type Category struct {
	Name      string
	Instances []string
}

// Label is one allowed relationship or attribute name. Examples are known
// values for attribute labels; relationship labels carry none.
type Label struct {
	Name     string
	Examples []string
}

// Ontology is an immutable schema: entity categories plus an ordered set of
// labels whose meaning depends on Kind.
type Ontology struct {
	kind       Kind
	categories []Category
	index      map[string]map[string]struct{}
	labels     []Label
	labelIndex map[string]int
}

// NewRelationship builds an entity-relationship ontology. Duplicate labels
// keep their first position.
func NewRelationship(entities []Category, relationships []string) *Ontology {
	labels := make([]Label, len(relationships))
	for i, r := range relationships {
		labels[i] = Label{Name: r}
	}
	return build(KindRelationship, entities, labels)
}

// NewAttribute builds an entity-attribute ontology. A label repeated in the
// input is merged: its examples are appended to the first occurrence.
func NewAttribute(entities []Category, attributes []Label) *Ontology {
	return build(KindAttribute, entities, attributes)
}

func build(kind Kind, entities []Category, labels []Label) *Ontology {
	o := &Ontology{
		kind:       kind,
		index:      make(map[string]map[string]struct{}, len(entities)),
		labelIndex: make(map[string]int, len(labels)),
	}

	catPos := make(map[string]int, len(entities))
	for _, c := range entities {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		pos, ok := catPos[name]
		if !ok {
			pos = len(o.categories)
			catPos[name] = pos
			o.categories = append(o.categories, Category{Name: name})
			o.index[name] = make(map[string]struct{})
		}
		for _, inst := range c.Instances {
			inst = strings.TrimSpace(inst)
			if inst == "" {
				continue
			}
			if _, dup := o.index[name][inst]; dup {
				continue
			}
			o.index[name][inst] = struct{}{}
			o.categories[pos].Instances = append(o.categories[pos].Instances, inst)
		}
	}

	for _, l := range labels {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			continue
		}
		pos, ok := o.labelIndex[name]
		if !ok {
			pos = len(o.labels)
			o.labelIndex[name] = pos
			o.labels = append(o.labels, Label{Name: name})
		}
		for _, ex := range l.Examples {
			if ex = strings.TrimSpace(ex); ex != "" {
				o.labels[pos].Examples = append(o.labels[pos].Examples, ex)
			}
		}
	}
	return o
}

// Kind returns the ontology variant.
func (o *Ontology) Kind() Kind { return o.kind }

// Categories returns a copy of the entity categories in definition order.
func (o *Ontology) Categories() []Category {
	out := make([]Category, len(o.categories))
	for i, c := range o.categories {
		out[i] = Category{Name: c.Name, Instances: append([]string(nil), c.Instances...)}
	}
	return out
}

// Labels returns a copy of the allowed labels in definition order.
func (o *Ontology) Labels() []Label {
	out := make([]Label, len(o.labels))
	for i, l := range o.labels {
		out[i] = Label{Name: l.Name, Examples: append([]string(nil), l.Examples...)}
	}
	return out
}

// LabelNames returns just the label names in definition order.
func (o *Ontology) LabelNames() []string {
	out := make([]string, len(o.labels))
	for i, l := range o.labels {
		out[i] = l.Name
	}
	return out
}

// HasCategory reports whether name is a defined entity category.
func (o *Ontology) HasCategory(name string) bool {
	_, ok := o.index[name]
	return ok
}

// HasLabel reports whether name is an allowed relationship/attribute label.
func (o *Ontology) HasLabel(name string) bool {
	_, ok := o.labelIndex[name]
	return ok
}

// Known reports whether instance is in the vocabulary of category.
func (o *Ontology) Known(category, instance string) bool {
	set, ok := o.index[category]
	if !ok {
		return false
	}
	_, ok = set[instance]
	return ok
}

// SplitVocabulary splits a comma-separated instance list. Full-width commas
// are folded to ASCII first so mixed-width lists split cleanly.
func SplitVocabulary(s string) []string {
	folded := width.Fold.String(s)
	parts := strings.FieldsFunc(folded, func(r rune) bool { return r == ',' || r == '、' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
