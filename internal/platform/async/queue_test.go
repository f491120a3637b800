package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainsOnClose(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	q := NewQueue("test", 10, 2, time.Second, func(ctx context.Context, n int) error {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	require.NoError(t, q.Close(context.Background()))
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, seen)

	assert.ErrorIs(t, q.Enqueue(99), ErrClosed)
	assert.NoError(t, q.Close(context.Background()), "close is idempotent")
}

func TestQueue_HandlerErrorsAreSwallowed(t *testing.T) {
	var calls atomic.Int32
	q := NewQueue("failing", 4, 1, time.Second, func(ctx context.Context, _ string) error {
		calls.Add(1)
		return errors.New("sink down")
	})
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	require.NoError(t, q.Close(context.Background()))
	assert.EqualValues(t, 2, calls.Load())
}

func TestQueue_FullDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("slow", 1, 1, time.Second, func(ctx context.Context, _ int) error {
		<-release
		return nil
	})

	require.NoError(t, q.Enqueue(1))
	// the worker may or may not have picked up the first item yet
	var full bool
	for i := 0; i < 3; i++ {
		if errors.Is(q.Enqueue(i), ErrFull) {
			full = true
			break
		}
	}
	assert.True(t, full)

	close(release)
	require.NoError(t, q.Close(context.Background()))
}

func TestQueue_HandlerGetsDeadline(t *testing.T) {
	got := make(chan bool, 1)
	q := NewQueue("deadline", 1, 1, 50*time.Millisecond, func(ctx context.Context, _ int) error {
		_, ok := ctx.Deadline()
		got <- ok
		return nil
	})
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Close(context.Background()))
	assert.True(t, <-got)
}
