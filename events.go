package kgmaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brunobiangulo/kgmaker/graph"
)

// EventKind classifies a progress event.
type EventKind string

const (
	EventStarted         EventKind = "started"
	EventEdge            EventKind = "edge"
	EventFileExported    EventKind = "file_exported"
	EventFileImported    EventKind = "file_imported"
	EventFileSkipped     EventKind = "file_skipped"
	EventFileFailed      EventKind = "file_failed"
	EventNoDestination   EventKind = "no_destination"
	EventUnknownOntology EventKind = "unknown_ontology"
	EventNoDirectory     EventKind = "no_directory"
	EventCompleted       EventKind = "completed"
	EventCancelled       EventKind = "cancelled"
	// EventFailed ends a run that could not get going or carry on, such
	// as an unreadable directory or an unreachable graph database.
	EventFailed EventKind = "failed"
)

// Event is one line of progress from a run. Events of a run arrive in the
// order files were processed and, within a file, in edge order.
type Event struct {
	Kind    EventKind   `json:"kind"`
	Op      string      `json:"op"`
	File    string      `json:"file,omitempty"`
	Message string      `json:"message"`
	Edge    *graph.Edge `json:"edge,omitempty"`
	Count   int         `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
	Time    time.Time   `json:"time"`
}

func (e Event) String() string { return e.Message }

// Sink receives progress events. Emit is called from the run's goroutine
// and must not block for long.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []EventKind {
	events := r.Events()
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// emitter stamps events with the operation name and time and mirrors them
// to the structured log.
type emitter struct {
	op   string
	sink Sink
}

func newEmitter(op string, sink Sink) emitter {
	if sink == nil {
		sink = Discard
	}
	return emitter{op: op, sink: sink}
}

func (em emitter) emit(e Event) {
	e.Op = em.op
	e.Time = time.Now()

	level := slog.LevelInfo
	switch e.Kind {
	case EventEdge:
		level = slog.LevelDebug
	case EventFailed:
		level = slog.LevelError
	case EventFileFailed, EventNoDestination, EventUnknownOntology, EventNoDirectory:
		level = slog.LevelWarn
	}
	attrs := []any{"kind", e.Kind}
	if e.File != "" {
		attrs = append(attrs, "file", e.File)
	}
	if e.Error != "" {
		attrs = append(attrs, "error", e.Error)
	}
	slog.Log(context.Background(), level, em.op+": "+e.Message, attrs...)

	em.sink.Emit(e)
}

// fail reports a run-level error as the run's last event and returns it.
func (em emitter) fail(message string, err error) error {
	em.emit(Event{Kind: EventFailed, Message: message, Error: err.Error()})
	return err
}
