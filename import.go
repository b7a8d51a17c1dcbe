package kgmaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/kgmaker/ontology"
	"github.com/brunobiangulo/kgmaker/store"
	"github.com/brunobiangulo/kgmaker/triples"
)

// ImportRequest describes one import run.
type ImportRequest struct {
	// Dir holds the triple spreadsheets to import.
	Dir string `json:"dir"`
	// Graph overrides the configured graph database.
	Graph store.Config `json:"graph,omitempty"`
}

// mappingRule turns validated spreadsheet records into graph writes.
type mappingRule func(ont *ontology.Ontology, recs []triples.Record) []store.Triple

// mappingRules holds one rule per ontology kind.
var mappingRules = map[ontology.Kind]mappingRule{
	ontology.KindRelationship: mapRelationships,
	ontology.KindAttribute:    mapAttributes,
}

// mapRelationships links two entity nodes by the relationship label.
func mapRelationships(ont *ontology.Ontology, recs []triples.Record) []store.Triple {
	return mapRecords(ont, recs, store.KindEntity)
}

// mapAttributes links an entity to an attribute-value node. The value
// node's category is the attribute name.
func mapAttributes(ont *ontology.Ontology, recs []triples.Record) []store.Triple {
	return mapRecords(ont, recs, store.KindAttribute)
}

func mapRecords(ont *ontology.Ontology, recs []triples.Record, tailKind string) []store.Triple {
	out := make([]store.Triple, len(recs))
	offOntology := 0
	for i, r := range recs {
		if !ont.HasLabel(r.Label) {
			offOntology++
		}
		out[i] = store.Triple{
			Head:  store.Node{Category: r.HeadCategory, Name: r.HeadName, Kind: store.KindEntity},
			Tail:  store.Node{Category: r.TailCategory, Name: r.TailName, Kind: tailKind},
			Label: r.Label,
		}
	}
	if offOntology > 0 {
		slog.Warn("import: labels outside the ontology", "kind", ont.Kind(), "rows", offOntology)
	}
	return out
}

// Import classifies every spreadsheet in req.Dir and writes its rows to the
// graph database with the mapping rule of its ontology kind. Files that are
// not spreadsheets are skipped, unclassifiable ones are reported as unknown
// and malformed or failing ones as failed; none of them stop the run. Each
// spreadsheet is written in one transaction, so a failed file leaves no
// partial import behind.
func (p *Pipeline) Import(ctx context.Context, req ImportRequest, sink Sink) (*RunReport, error) {
	em := newEmitter("import", sink)
	report := &RunReport{}

	if req.Dir == "" {
		em.emit(Event{Kind: EventNoDirectory, Message: "No directory path selected.", Error: ErrNoDirectory.Error()})
		return report, ErrNoDirectory
	}
	entries, err := readDirUnsorted(req.Dir)
	if err != nil {
		return report, em.fail(fmt.Sprintf("Cannot read directory %s.", req.Dir), err)
	}

	g, err := p.OpenGraph(req.Graph)
	if err != nil {
		return report, em.fail("Cannot connect to the graph database.", err)
	}
	defer g.Close()

	em.emit(Event{Kind: EventStarted, Message: "Start passing user-supplied triples into the graph database"})

	for _, e := range entries {
		if ctx.Err() != nil {
			report.Cancelled = true
			em.emit(Event{Kind: EventCancelled, Message: "Import cancelled.", Error: ctx.Err().Error()})
			return report, ctx.Err()
		}

		name := e.Name()
		if strings.HasPrefix(name, ".") {
			// Hidden files, including the exporter's lock files.
			slog.Debug("import: ignoring hidden file", "file", name)
			continue
		}
		if e.IsDir() || !triples.IsSpreadsheet(name) {
			report.Skipped = append(report.Skipped, name)
			em.emit(Event{Kind: EventFileSkipped, File: name, Message: fmt.Sprintf("Skipped non-Excel file %s.", name)})
			continue
		}

		kind, res, ferr := p.importFile(ctx, g, filepath.Join(req.Dir, name), name)
		switch {
		case ferr != nil && errors.Is(ferr, triples.ErrUnknownKind):
			report.Unknown = append(report.Unknown, name)
			em.emit(Event{Kind: EventUnknownOntology, File: name,
				Message: fmt.Sprintf("Unknown ontology type for file %s.", name), Error: ferr.Error()})
		case ferr != nil:
			report.Failures = append(report.Failures, ferr)
			em.emit(Event{Kind: EventFileFailed, File: name,
				Message: fmt.Sprintf("Failed to import %s.", name), Error: ferr.Error()})
		default:
			report.Files++
			report.Rows += res.Rows
			report.NodesCreated += res.NodesCreated
			report.EdgesCreated += res.EdgesCreated
			em.emit(Event{Kind: EventFileImported, File: name, Count: res.Rows,
				Message: fmt.Sprintf("Successfully passed %s triples into the graph database for file %s.",
					capitalise(kindPhrase(kind)), name)})
		}
	}

	if p.embedder != nil && g.EmbeddingDim() > 0 {
		if n, err := p.embedNodes(ctx, g); err != nil {
			slog.Warn("import: embedding node names", "embedded", n, "error", err)
		} else if n > 0 {
			slog.Info("import: embedded node names", "count", n)
		}
	}

	em.emit(Event{Kind: EventCompleted, Count: report.Rows,
		Message: "All files have been successfully imported into the graph database."})
	return report, nil
}

// importFile reads, classifies, validates and writes one spreadsheet.
func (p *Pipeline) importFile(ctx context.Context, g *store.Store, path, name string) (ontology.Kind, *store.ImportResult, *FileError) {
	sheet, err := triples.ReadFile(path)
	if err != nil {
		return "", nil, &FileError{Path: name, Op: "read", Err: err}
	}
	kind, err := sheet.Classify()
	if err != nil {
		return "", nil, &FileError{Path: name, Op: "classify", Err: err}
	}
	ont, err := p.ontologies.Get(kind)
	if err != nil {
		return kind, nil, &FileError{Path: name, Op: "classify", Err: err}
	}
	recs, err := sheet.Records()
	if err != nil {
		return kind, nil, &FileError{Path: name, Op: "read", Err: err}
	}

	rows := mappingRules[kind](ont, recs)
	res, err := g.ImportTriples(ctx, name, string(kind), rows)
	if err != nil {
		return kind, nil, &FileError{Path: name, Op: "import", Err: err}
	}
	return kind, res, nil
}

// embedBatch bounds how many node names go into one embedding request.
const embedBatch = 64

// embedNodes embeds the names of nodes that have no embedding yet.
func (p *Pipeline) embedNodes(ctx context.Context, g *store.Store) (int, error) {
	done := 0
	for {
		nodes, err := g.NodesWithoutEmbedding(ctx, embedBatch)
		if err != nil {
			return done, err
		}
		if len(nodes) == 0 {
			return done, nil
		}
		texts := make([]string, len(nodes))
		for i, n := range nodes {
			texts[i] = n.Category + ": " + n.Name
		}
		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return done, err
		}
		if len(vecs) != len(nodes) {
			return done, fmt.Errorf("got %d embeddings for %d nodes", len(vecs), len(nodes))
		}
		for i, n := range nodes {
			if err := g.InsertNodeEmbedding(ctx, n.ID, vecs[i]); err != nil {
				return done, err
			}
			done++
		}
	}
}
