// Package async runs fire-and-forget side effects off the request path.
package async

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// ErrFull is returned by Enqueue when the buffer is saturated.
var ErrFull = errors.New("queue full")

// Handler processes one queued item.
type Handler[T any] func(ctx context.Context, item T) error

// Queue is a bounded buffer drained by a fixed set of workers. Handler
// failures are logged and dropped; callers never see them.
type Queue[T any] struct {
	name    string
	items   chan T
	handle  Handler[T]
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts workers goroutines. Each item gets its own timeout.
func NewQueue[T any](name string, size, workers int, timeout time.Duration, handle Handler[T]) *Queue[T] {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	q := &Queue[T]{
		name:    name,
		items:   make(chan T, size),
		handle:  handle,
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for item := range q.items {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := q.handle(ctx, item); err != nil {
			log.Printf("async queue=%s handler failed err=%v", q.name, err)
		}
		cancel()
	}
}

// Enqueue hands item to the workers without blocking.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.items <- item:
		return nil
	default:
		return ErrFull
	}
}

// Close stops accepting items and waits for the buffered ones to drain,
// or for ctx to end.
func (q *Queue[T]) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
