// Package triples persists extracted edges as spreadsheet rows and reads
// them back for import.
//
// Each ontology kind owns one workbook in the output directory:
// ERTriples.xlsx for relationships and EATriples.xlsx for attributes. The
// first sheet holds a header row followed by one row per triple, in the
// fixed column order head, key1, <relationship|attribute>, tail, key2.
package triples

import (
	"errors"
	"fmt"

	"github.com/brunobiangulo/kgmaker/graph"
	"github.com/brunobiangulo/kgmaker/ontology"
)

var (
	// ErrUnknownKind is returned when a workbook is neither relationship
	// nor attribute data.
	ErrUnknownKind = errors.New("triples: unknown ontology type")

	// ErrMalformed is returned for workbooks whose header or rows do not
	// have the five triple columns.
	ErrMalformed = errors.New("triples: malformed spreadsheet")

	// ErrHeaderMismatch is returned when appending to a workbook whose
	// header differs from the one the kind requires.
	ErrHeaderMismatch = errors.New("triples: existing header does not match")

	// ErrLocked is returned when another writer holds the workbook lock
	// past the exporter's wait limit.
	ErrLocked = errors.New("triples: spreadsheet is locked by another writer")
)

// Ext is the spreadsheet file extension written by the exporter.
const Ext = ".xlsx"

// Columns in a triple sheet.
const (
	ColHead = "head"
	ColKey1 = "key1"
	ColTail = "tail"
	ColKey2 = "key2"
)

// Record is one spreadsheet row derived from exactly one edge.
type Record struct {
	HeadCategory string
	HeadName     string
	Label        string
	TailCategory string
	TailName     string
}

// Row returns the record in column order.
func (r Record) Row() []string {
	return []string{r.HeadCategory, r.HeadName, r.Label, r.TailCategory, r.TailName}
}

// Header returns the header row for kind. The label column is named after
// the kind itself.
func Header(kind ontology.Kind) []string {
	return []string{ColHead, ColKey1, string(kind), ColTail, ColKey2}
}

// FileName returns the workbook name for kind.
func FileName(kind ontology.Kind) (string, error) {
	switch kind {
	case ontology.KindRelationship:
		return "ERTriples" + Ext, nil
	case ontology.KindAttribute:
		return "EATriples" + Ext, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// FromEdges projects edges into records, preserving order.
func FromEdges(edges []graph.Edge) []Record {
	out := make([]Record, len(edges))
	for i, e := range edges {
		out[i] = Record{
			HeadCategory: e.Node1.Category,
			HeadName:     e.Node1.Name,
			Label:        e.Relationship,
			TailCategory: e.Node2.Category,
			TailName:     e.Node2.Name,
		}
	}
	return out
}
