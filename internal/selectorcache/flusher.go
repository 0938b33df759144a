// File: internal/selectorcache/flusher.go
package selectorcache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// flusher runs durable-tier snapshot writes on a single background
// goroutine. Kicks coalesce: many puts in quick succession produce one
// write of the latest full snapshot. Close drains within the caller's
// context and then performs one final synchronous flush, so a graceful
// shutdown never loses a committed mutation.
type flusher struct {
	logger  *zap.Logger
	flushFn func() error

	mu     sync.Mutex
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newFlusher(logger *zap.Logger, flushFn func() error) *flusher {
	f := &flusher{
		logger:  logger.Named("flusher"),
		flushFn: flushFn,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *flusher) run() {
	defer close(f.done)
	for range f.signal {
		f.flushOnce()
	}
}

func (f *flusher) flushOnce() {
	if err := f.flushFn(); err != nil {
		// Not fatal: the memory tier stays authoritative and the next
		// mutation schedules another snapshot.
		f.logger.Warn("Durable tier flush failed", zap.Error(err))
	}
}

// kick schedules a flush without blocking. A pending kick absorbs new ones;
// kicks after close are dropped.
func (f *flusher) kick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// close stops the worker, waits for it to drain within ctx, and writes one
// final synchronous snapshot.
func (f *flusher) close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.signal)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
	case <-ctx.Done():
		f.logger.Warn("Flusher drain interrupted by context", zap.Error(ctx.Err()))
		return ctx.Err()
	}

	f.flushOnce()
	return nil
}
