package kgmaker

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDestination is reported when extraction runs without an output
	// directory. Edges are still extracted but nothing is exported.
	ErrNoDestination = errors.New("kgmaker: no export destination selected")

	// ErrNoDirectory is returned when a run is started without an input
	// directory.
	ErrNoDirectory = errors.New("kgmaker: no directory selected")

	// ErrUnknownOntology is reported for spreadsheets that are neither
	// relationship nor attribute triples.
	ErrUnknownOntology = errors.New("kgmaker: unknown ontology type")

	// ErrExtractionFailed wraps a failure of the extraction capability.
	ErrExtractionFailed = errors.New("kgmaker: extraction failed")

	// ErrNoEmbedder is returned by similarity search when no embedding
	// provider is configured.
	ErrNoEmbedder = errors.New("kgmaker: no embedding provider configured")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("kgmaker: invalid configuration")
)

// FileError is a failure confined to one file of a directory run.
type FileError struct {
	Path string
	Op   string // "extract", "export", "read", "import"
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
