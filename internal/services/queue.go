package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Job is one scheduled extraction unit: the record to update and the file
// bytes to extract from. FileURL lets the worker re-fetch the bytes from
// storage if they are not carried inline.
type Job struct {
	DocumentID  string
	FileBytes   []byte
	FileURL     string
	TraceID     string
	SubmittedAt time.Time
}

// ErrQueueClosed reports an enqueue after shutdown.
var ErrQueueClosed = errors.New("work queue is shut down")

// ErrQueueFull reports that the queue buffer is exhausted. Scheduling is
// best effort; the caller decides how to surface this.
var ErrQueueFull = errors.New("work queue is full")

// JobHandler processes one job to completion, including the terminal status
// write. Handlers never return errors: every outcome ends up on the record.
type JobHandler func(ctx context.Context, job Job)

// Dispatcher is an in-process work queue with a fixed worker pool. An
// in-flight set keyed by document id guarantees at most one concurrent
// attempt per record.
type Dispatcher struct {
	jobs    chan Job
	handler JobHandler

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool

	wg sync.WaitGroup
}

// NewDispatcher starts workers goroutines consuming the queue.
func NewDispatcher(workers, capacity int, handler JobHandler) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 16
	}
	d := &Dispatcher{
		jobs:     make(chan Job, capacity),
		handler:  handler,
		inflight: make(map[string]struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		// Jobs run detached from the submitting request: once scheduled,
		// a task runs to completion with no caller-initiated abort.
		d.handler(context.Background(), job)

		d.mu.Lock()
		delete(d.inflight, job.DocumentID)
		d.mu.Unlock()
	}
}

// Enqueue schedules a job. A job for a document that already has an attempt
// in flight is rejected.
func (d *Dispatcher) Enqueue(_ context.Context, job Job) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrQueueClosed
	}
	if _, busy := d.inflight[job.DocumentID]; busy {
		d.mu.Unlock()
		return errors.New("document already has an extraction in flight")
	}
	d.inflight[job.DocumentID] = struct{}{}
	d.mu.Unlock()

	select {
	case d.jobs <- job:
		return nil
	default:
		d.mu.Lock()
		delete(d.inflight, job.DocumentID)
		d.mu.Unlock()
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for in-flight work, up to the
// context deadline.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.jobs)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Dispatcher shutdown timed out with jobs still in flight.")
	}
}
