package triples

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"
	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/kgmaker/graph"
	"github.com/brunobiangulo/kgmaker/ontology"
)

// markerPrefix namespaces the kind marker stored in the workbook's
// document category property.
const markerPrefix = "kgmaker:"

const (
	defaultLockWait  = 30 * time.Second
	lockRetryBackoff = 50 * time.Millisecond
)

// ExportResult reports what one Export call did.
type ExportResult struct {
	Path     string
	Existing int // data rows already in the file
	Appended int // data rows added by this call
	Created  bool
}

// Exporter appends triples to the per-kind workbook in a directory. Writers
// of the same workbook are serialised with a lock file next to it, and each
// write lands in a temporary file that is renamed over the original.
type Exporter struct {
	// LockWait bounds how long Export waits for another writer.
	LockWait time.Duration
}

// NewExporter returns an Exporter with the default lock wait.
func NewExporter() *Exporter {
	return &Exporter{LockWait: defaultLockWait}
}

// Export merges edges into dir's workbook for kind. Existing rows are kept
// in place and the new rows are appended after them; nothing is
// de-duplicated. An empty edge list is a no-op once dir exists.
func (x *Exporter) Export(ctx context.Context, dir string, kind ontology.Kind, edges []graph.Edge) (*ExportResult, error) {
	name, err := FileName(kind)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	res := &ExportResult{Path: path}
	if len(edges) == 0 {
		return res, nil
	}

	unlock, err := x.lock(ctx, path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, existing, created, err := openOrCreate(path, kind)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	// Row 1 is the header; data starts at row 2.
	next := existing + 2
	for _, rec := range FromEdges(edges) {
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return nil, err
		}
		row := toCells(rec.Row())
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", next, err)
		}
		next++
	}

	if err := setMarker(f, kind); err != nil {
		return nil, err
	}
	if err := writeAtomic(f, path); err != nil {
		return nil, err
	}

	res.Existing = existing
	res.Appended = len(edges)
	res.Created = created
	slog.Info("triples: exported",
		"path", path, "kind", kind, "existing", existing, "appended", len(edges))
	return res, nil
}

// lock takes the workbook's lock file, waiting up to LockWait.
func (x *Exporter) lock(ctx context.Context, path string) (func(), error) {
	wait := x.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	fl := flock.New(lockPath(path))
	locked, err := fl.TryLockContext(lockCtx, lockRetryBackoff)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("acquiring lock for %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return func() { _ = fl.Unlock() }, nil
}

// lockPath is the hidden lock file beside a workbook.
func lockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

// openOrCreate opens the workbook at path, or starts a new one with the
// kind's header. It returns the number of data rows already present.
func openOrCreate(path string, kind ontology.Kind) (*excelize.File, int, bool, error) {
	want := Header(kind)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f := excelize.NewFile()
		header := toCells(want)
		if err := f.SetSheetRow(f.GetSheetName(0), "A1", &header); err != nil {
			f.Close()
			return nil, 0, false, fmt.Errorf("writing header: %w", err)
		}
		return f, 0, true, nil
	} else if err != nil {
		return nil, 0, false, fmt.Errorf("checking %s: %w", path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, 0, false, fmt.Errorf("opening %s: %w", path, err)
	}
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		f.Close()
		return nil, 0, false, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		// An empty sheet gets a fresh header and no prior data.
		header := toCells(want)
		if err := f.SetSheetRow(f.GetSheetName(0), "A1", &header); err != nil {
			f.Close()
			return nil, 0, false, fmt.Errorf("writing header: %w", err)
		}
		return f, 0, false, nil
	}
	if !slices.Equal(trimRow(rows[0]), want) {
		f.Close()
		return nil, 0, false, fmt.Errorf("%w: %s has %v, want %v", ErrHeaderMismatch, path, rows[0], want)
	}
	return f, len(rows) - 1, false, nil
}

// setMarker records the kind in the workbook's document properties so the
// importer can classify the file without reading the header text.
func setMarker(f *excelize.File, kind ontology.Kind) error {
	props, err := f.GetDocProps()
	if err != nil || props == nil {
		props = &excelize.DocProperties{}
	}
	props.Category = markerPrefix + string(kind)
	if props.Creator == "" {
		props.Creator = "kgmaker"
	}
	props.Modified = time.Now().UTC().Format(time.RFC3339)
	if err := f.SetDocProps(props); err != nil {
		return fmt.Errorf("setting kind marker: %w", err)
	}
	return nil
}

// writeAtomic writes f to a temporary file in path's directory and renames
// it over path.
func writeAtomic(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// trimRow drops trailing empty cells.
func trimRow(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}
