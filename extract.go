package kgmaker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/brunobiangulo/kgmaker/graph"
	"github.com/brunobiangulo/kgmaker/ontology"
	"github.com/brunobiangulo/kgmaker/parser"
)

// ExtractRequest describes one extraction run.
type ExtractRequest struct {
	// InputDir holds the text files to read.
	InputDir string `json:"input_dir"`
	// OutputDir receives the triple spreadsheet. When empty, edges are
	// extracted and reported but nothing is exported.
	OutputDir string `json:"output_dir,omitempty"`
	// Kind selects the ontology. ExtractAll ignores it.
	Kind ontology.Kind `json:"kind"`
	// Delay overrides the configured pause between model calls.
	Delay *time.Duration `json:"delay,omitempty"`
}

// RunReport summarises a directory run.
type RunReport struct {
	Files        int          `json:"files"`
	Edges        int          `json:"edges,omitempty"`
	Exported     int          `json:"exported,omitempty"`
	Rows         int          `json:"rows,omitempty"`
	NodesCreated int          `json:"nodes_created,omitempty"`
	EdgesCreated int          `json:"edges_created,omitempty"`
	Skipped      []string     `json:"skipped,omitempty"`
	Unknown      []string     `json:"unknown,omitempty"`
	Failures     []*FileError `json:"-"`
	Cancelled    bool         `json:"cancelled,omitempty"`
}

// Err joins the per-file failures, or returns nil if there were none.
func (r *RunReport) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *RunReport) merge(o *RunReport) {
	r.Files += o.Files
	r.Edges += o.Edges
	r.Exported += o.Exported
	r.Rows += o.Rows
	r.NodesCreated += o.NodesCreated
	r.EdgesCreated += o.EdgesCreated
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.Unknown = append(r.Unknown, o.Unknown...)
	r.Failures = append(r.Failures, o.Failures...)
	r.Cancelled = r.Cancelled || o.Cancelled
}

// Extract reads every input file in req.InputDir, in directory-listing
// order, extracts edges under the requested ontology and appends them to
// the kind's spreadsheet in req.OutputDir.
//
// A file that cannot be read, extracted or exported is reported with a
// file_failed event and left out entirely; the run moves on to the next
// file. Only failures of shared setup (no input directory, unknown
// ontology, unlistable or uncreatable directories) end the run with an
// error. Cancellation is checked between files.
func (p *Pipeline) Extract(ctx context.Context, req ExtractRequest, sink Sink) (*RunReport, error) {
	em := newEmitter("extract", sink)
	report := &RunReport{}

	if req.InputDir == "" {
		em.emit(Event{Kind: EventNoDirectory, Message: "No input directory selected.", Error: ErrNoDirectory.Error()})
		return report, ErrNoDirectory
	}
	ont, err := p.ontologies.Get(req.Kind)
	if err != nil {
		return report, em.fail("Unknown ontology type.", fmt.Errorf("%w: %v", ErrUnknownOntology, err))
	}
	delay := p.cfg.CallDelay
	if req.Delay != nil {
		delay = *req.Delay
	}

	files, err := p.inputFiles(req.InputDir)
	if err != nil {
		return report, em.fail(fmt.Sprintf("Cannot read input directory %s.", req.InputDir), err)
	}
	if req.OutputDir != "" {
		if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
			return report, em.fail(fmt.Sprintf("Cannot create output directory %s.", req.OutputDir),
				fmt.Errorf("creating output directory: %w", err))
		}
	}

	phrase := kindPhrase(ont.Kind())
	em.emit(Event{Kind: EventStarted, Message: fmt.Sprintf("Start extracting %s triples from %s", phrase, req.InputDir)})

	for _, name := range files {
		if ctx.Err() != nil {
			report.Cancelled = true
			em.emit(Event{Kind: EventCancelled, Message: "Extraction cancelled.", Error: ctx.Err().Error()})
			return report, ctx.Err()
		}

		path := filepath.Join(req.InputDir, name)
		edges, ferr := p.extractFile(ctx, ont, path, name, delay)
		if ferr != nil {
			if ctx.Err() != nil {
				report.Cancelled = true
				em.emit(Event{Kind: EventCancelled, File: name, Message: "Extraction cancelled.", Error: ctx.Err().Error()})
				return report, ctx.Err()
			}
			report.Failures = append(report.Failures, ferr)
			em.emit(Event{Kind: EventFileFailed, File: name,
				Message: fmt.Sprintf("Failed to extract %s triples from %s.", phrase, name), Error: ferr.Error()})
			continue
		}
		report.Files++
		report.Edges += len(edges)

		for i := range edges {
			e := edges[i]
			em.emit(Event{Kind: EventEdge, File: name, Message: e.String(), Edge: &e})
		}

		if req.OutputDir == "" {
			em.emit(Event{Kind: EventNoDestination, File: name, Count: len(edges),
				Message: "The save path is not selected, please select the save path.",
				Error:   ErrNoDestination.Error()})
			continue
		}

		res, err := p.exporter.Export(ctx, req.OutputDir, ont.Kind(), edges)
		if err != nil {
			ferr := &FileError{Path: name, Op: "export", Err: err}
			report.Failures = append(report.Failures, ferr)
			em.emit(Event{Kind: EventFileFailed, File: name,
				Message: fmt.Sprintf("Failed to export %s triples from %s.", phrase, name), Error: ferr.Error()})
			continue
		}
		report.Exported += res.Appended
		em.emit(Event{Kind: EventFileExported, File: name, Count: res.Appended,
			Message: fmt.Sprintf("%s triples have been extracted from %s to %s",
				capitalise(phrase), name, res.Path)})
	}

	em.emit(Event{Kind: EventCompleted, Count: report.Edges,
		Message: fmt.Sprintf("All %s triples have been extracted and successfully exported.", phrase)})
	return report, nil
}

// ExtractAll runs a relationship pass and then an attribute pass over the
// same directory. It stops early only on a run-level error.
func (p *Pipeline) ExtractAll(ctx context.Context, req ExtractRequest, sink Sink) (*RunReport, error) {
	total := &RunReport{}
	for _, kind := range []ontology.Kind{ontology.KindRelationship, ontology.KindAttribute} {
		r := req
		r.Kind = kind
		rep, err := p.Extract(ctx, r, sink)
		total.merge(rep)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// extractFile loads one file and runs the extraction capability over it.
func (p *Pipeline) extractFile(ctx context.Context, ont *ontology.Ontology, path, name string, delay time.Duration) ([]graph.Edge, *FileError) {
	prs, err := p.parsers.ForPath(path)
	if err != nil {
		return nil, &FileError{Path: name, Op: "read", Err: err}
	}
	res, err := prs.Parse(ctx, path)
	if err != nil {
		return nil, &FileError{Path: name, Op: "read", Err: err}
	}
	units := parser.TextUnits(name, res.Lines)
	if len(units) == 0 {
		return nil, nil
	}
	edges, err := p.extractor.Extract(ctx, ont, units, delay)
	if err != nil {
		return nil, &FileError{Path: name, Op: "extract", Err: fmt.Errorf("%w: %w", ErrExtractionFailed, err)}
	}
	return edges, nil
}

// inputFiles lists the regular files in dir whose extension is one of the
// configured input formats, in the order the directory returns them.
// Extensions match case-sensitively: "notes.TXT" is not a "txt" file.
func (p *Pipeline) inputFiles(dir string) ([]string, error) {
	entries, err := readDirUnsorted(dir)
	if err != nil {
		return nil, err
	}
	formats := p.cfg.InputFormats
	if len(formats) == 0 {
		formats = []string{"txt"}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		if slices.Contains(formats, ext) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// readDirUnsorted is os.ReadDir without the sort.
func readDirUnsorted(dir string) ([]os.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening directory: %w", err)
	}
	defer f.Close()
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}
	return entries, nil
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
