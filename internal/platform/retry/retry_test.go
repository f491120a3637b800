package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")

func Test_Do_Success_NoRetries(t *testing.T) {
	callCount := 0

	err := Do(context.Background(), func(_ context.Context) error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func Test_Do_RetriesUntilSuccess(t *testing.T) {
	callCount := 0

	err := Do(context.Background(), func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return errTransient
		}
		return nil
	}, WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func Test_Do_GivesUpAfterMaxAttempts(t *testing.T) {
	callCount := 0

	err := Do(context.Background(), func(_ context.Context) error {
		callCount++
		return errTransient
	}, WithMaxAttempts(3), WithBaseDelay(time.Millisecond))

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, callCount)
}

func Test_Do_NonRetryableFailsFast(t *testing.T) {
	permanent := errors.New("permanent")
	callCount := 0

	err := Do(context.Background(), func(_ context.Context) error {
		callCount++
		return permanent
	}, WithRetryIf(func(err error) bool { return errors.Is(err, errTransient) }))

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount)
}

func Test_Do_AttemptTimeoutIsRetried(t *testing.T) {
	callCount := 0

	err := Do(context.Background(), func(ctx context.Context) error {
		callCount++
		if callCount == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, WithAttemptTimeout(10*time.Millisecond), WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 2, callCount)
}

func Test_Do_ParentContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	callCount := 0

	err := Do(ctx, func(_ context.Context) error {
		callCount++
		cancel()
		return errTransient
	}, WithBaseDelay(time.Millisecond))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}

func Test_Do_InvalidOptions(t *testing.T) {
	fn := func(_ context.Context) error { return nil }

	assert.ErrorIs(t, Do(context.Background(), fn, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, Do(context.Background(), fn, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, Do(context.Background(), fn, WithJitterFactor(1.5)), ErrInvalidJitterFactor)
	assert.ErrorIs(t, Do(context.Background(), fn, WithAttemptTimeout(0)), ErrNonPositiveTimeout)
}
