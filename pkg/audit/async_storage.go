package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions configures batching of the AsyncWriter.
type AsyncOptions struct {
	BufferSize     int           // Max queued events before Store falls back to a direct write
	BatchSize      int           // Events per flush
	BatchTimeout   time.Duration // Max wait before a partial batch is flushed
	StorageTimeout time.Duration // Per-flush storage timeout
}

// AsyncWriter collects events into batches written by a background goroutine.
// Store blocks until the batch holding the event has been written.
type AsyncWriter struct {
	bw      BatchWriter
	queue   chan pendingEvent
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	options AsyncOptions
}

type pendingEvent struct {
	event  Event
	result chan error
}

// NewAsyncWriter starts the background flusher. Call Close on shutdown to drain the queue.
func NewAsyncWriter(bw BatchWriter, opts AsyncOptions) *AsyncWriter {
	if bw == nil {
		panic("audit: batch writer cannot be nil")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 100 * time.Millisecond
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = 5 * time.Second
	}

	aw := &AsyncWriter{
		bw:      bw,
		queue:   make(chan pendingEvent, opts.BufferSize),
		done:    make(chan struct{}),
		options: opts,
	}
	aw.wg.Add(1)
	go aw.worker()
	return aw
}

func (aw *AsyncWriter) Store(ctx context.Context, event Event) error {
	result := make(chan error, 1)

	select {
	case <-aw.done:
		return ErrStorageNotAvailable
	default:
	}

	select {
	case aw.queue <- pendingEvent{event: event, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Queue is full: write synchronously rather than drop the event.
		return aw.bw.StoreBatch(ctx, []Event{event})
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (aw *AsyncWriter) worker() {
	defer aw.wg.Done()

	batch := make([]Event, 0, aw.options.BatchSize)
	waiting := make([]chan error, 0, aw.options.BatchSize)
	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Detached from callers so one cancelled request does not fail the whole batch.
		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		err := aw.bw.StoreBatch(ctx, batch)
		cancel()
		for _, ch := range waiting {
			ch <- err
		}
		batch = batch[:0]
		waiting = waiting[:0]
	}

	for {
		select {
		case p := <-aw.queue:
			batch = append(batch, p.event)
			waiting = append(waiting, p.result)
			if len(batch) >= aw.options.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-aw.done:
			for {
				select {
				case p := <-aw.queue:
					batch = append(batch, p.event)
					waiting = append(waiting, p.result)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and flushes what is queued.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.once.Do(func() { close(aw.done) })

	finished := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
