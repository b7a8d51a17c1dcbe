// Package parser loads source documents as lines of text and turns them
// into the padded text units the extraction capability consumes.
package parser

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/brunobiangulo/kgmaker/graph"
)

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Lines  []string // raw lines in document order, blanks included
	Method string   // "native"
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// TextUnits normalises lines to NFC, drops blank lines and wraps the rest
// with a leading and trailing newline. Line numbers refer to the input.
func TextUnits(source string, lines []string) []graph.TextUnit {
	units := make([]graph.TextUnit, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(norm.NFC.String(line))
		if line == "" {
			continue
		}
		units = append(units, graph.TextUnit{
			Text:   "\n" + line + "\n",
			Source: source,
			Line:   i + 1,
		})
	}
	return units
}
