package triples

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/kgmaker/ontology"
)

// spreadsheetExts are the extensions the importer treats as workbooks.
var spreadsheetExts = map[string]bool{".xlsx": true, ".xls": true}

// IsSpreadsheet reports whether name has a workbook extension.
func IsSpreadsheet(name string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(name))]
}

// Sheet is the first worksheet of a triple workbook, read fully.
type Sheet struct {
	Path   string
	Name   string
	Header []string
	Rows   [][]string // data rows, header excluded
	Marker ontology.Kind
}

// ReadFile opens a workbook and reads its first sheet.
func ReadFile(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	name := f.GetSheetName(0)
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	s := &Sheet{Path: path, Name: name}
	if len(rows) > 0 {
		s.Header = trimRow(rows[0])
		s.Rows = rows[1:]
	}
	if props, err := f.GetDocProps(); err == nil && props != nil {
		if kind, ok := parseMarker(props.Category); ok {
			s.Marker = kind
		}
	}
	return s, nil
}

func parseMarker(category string) (ontology.Kind, bool) {
	rest, ok := strings.CutPrefix(category, markerPrefix)
	if !ok {
		return "", false
	}
	kind := ontology.Kind(rest)
	return kind, kind.Valid()
}

// Classify decides which ontology a sheet encodes. The third header cell
// decides whenever it names a kind; a kind marker that disagrees with it
// is stale, from a workbook refilled with the other kind, and is ignored.
// The marker only settles sheets whose header names no kind.
func (s *Sheet) Classify() (ontology.Kind, error) {
	kind, err := ClassifyHeader(s.Header)
	switch {
	case err == nil:
		if s.Marker.Valid() && s.Marker != kind {
			slog.Warn("triples: kind marker disagrees with header",
				"path", s.Path, "marker", s.Marker, "header", kind)
		}
		return kind, nil
	case errors.Is(err, ErrUnknownKind) && s.Marker.Valid():
		return s.Marker, nil
	default:
		return "", err
	}
}

// ClassifyHeader classifies by the third column name alone.
func ClassifyHeader(header []string) (ontology.Kind, error) {
	if len(header) < 3 {
		return "", fmt.Errorf("%w: header has %d columns", ErrMalformed, len(header))
	}
	col := header[2]
	switch {
	case strings.Contains(col, string(ontology.KindRelationship)):
		return ontology.KindRelationship, nil
	case strings.Contains(col, string(ontology.KindAttribute)):
		return ontology.KindAttribute, nil
	default:
		return "", fmt.Errorf("%w: third column is %q", ErrUnknownKind, col)
	}
}

// Records validates the sheet's shape and returns its rows as records.
// Blank rows are skipped. A row with cells beyond the fifth column, an empty
// head or tail name, or an empty label makes the whole sheet malformed.
func (s *Sheet) Records() ([]Record, error) {
	if len(s.Header) != 5 {
		return nil, fmt.Errorf("%w: header has %d columns, want 5", ErrMalformed, len(s.Header))
	}

	out := make([]Record, 0, len(s.Rows))
	for i, row := range s.Rows {
		row = trimRow(row)
		if len(row) == 0 {
			continue
		}
		// Row numbers are 1-based spreadsheet rows; data starts at 2.
		line := i + 2
		if len(row) > 5 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrMalformed, line, len(row))
		}
		cells := make([]string, 5)
		for j, c := range row {
			cells[j] = strings.TrimSpace(c)
		}
		if cells[1] == "" || cells[4] == "" {
			return nil, fmt.Errorf("%w: row %d is missing a node name", ErrMalformed, line)
		}
		if cells[2] == "" {
			return nil, fmt.Errorf("%w: row %d is missing its label", ErrMalformed, line)
		}
		out = append(out, Record{
			HeadCategory: cells[0],
			HeadName:     cells[1],
			Label:        cells[2],
			TailCategory: cells[3],
			TailName:     cells[4],
		})
	}
	return out, nil
}
