package kgmaker

import (
	"context"
	"sync"
)

// RunFunc is a directory run that reports progress to a sink.
type RunFunc func(ctx context.Context, sink Sink) (*RunReport, error)

// Job runs one long operation on its own goroutine and hands its progress
// to a single observer through Events. The observer must drain Events
// until it is closed; the run blocks while the channel is full.
type Job struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	report *RunReport
	err    error
}

// Start launches run in the background. buffer sizes the event channel.
func Start(ctx context.Context, run RunFunc, buffer int) *Job {
	if buffer < 0 {
		buffer = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(j.done)
		defer close(j.events)
		defer cancel()
		report, err := run(ctx, SinkFunc(func(e Event) { j.events <- e }))
		j.mu.Lock()
		j.report, j.err = report, err
		j.mu.Unlock()
	}()
	return j
}

// Events returns the ordered progress stream. It is closed when the run
// returns.
func (j *Job) Events() <-chan Event { return j.events }

// Done is closed once the run has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel asks the run to stop at its next file boundary.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks until the run returns and yields its result. Events still
// buffered are discarded so Wait never deadlocks against a full channel.
func (j *Job) Wait() (*RunReport, error) {
	for {
		select {
		case <-j.done:
			j.mu.Lock()
			defer j.mu.Unlock()
			return j.report, j.err
		case _, ok := <-j.events:
			if !ok {
				<-j.done
				j.mu.Lock()
				defer j.mu.Unlock()
				return j.report, j.err
			}
		}
	}
}

// StartExtract runs Extract in the background.
func (p *Pipeline) StartExtract(ctx context.Context, req ExtractRequest) *Job {
	return Start(ctx, func(ctx context.Context, sink Sink) (*RunReport, error) {
		return p.Extract(ctx, req, sink)
	}, 64)
}

// StartExtractAll runs ExtractAll in the background.
func (p *Pipeline) StartExtractAll(ctx context.Context, req ExtractRequest) *Job {
	return Start(ctx, func(ctx context.Context, sink Sink) (*RunReport, error) {
		return p.ExtractAll(ctx, req, sink)
	}, 64)
}

// StartImport runs Import in the background.
func (p *Pipeline) StartImport(ctx context.Context, req ImportRequest) *Job {
	return Start(ctx, func(ctx context.Context, sink Sink) (*RunReport, error) {
		return p.Import(ctx, req, sink)
	}, 64)
}
