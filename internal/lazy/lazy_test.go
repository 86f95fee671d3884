package lazy

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

func TestValueInitializesOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	v := New(func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "pronto", nil
	})

	state, err := v.Peek()
	assert.Equal(t, StateIdle, state)
	assert.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := v.Get(context.Background())
			assert.NoError(t, err)
			results[i] = val
		}(i)
	}

	// 让所有调用者进入等待
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, r := range results {
		assert.Equal(t, "pronto", r)
	}

	state, _ = v.Peek()
	assert.Equal(t, StateReady, state)

	val, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pronto", val)
	assert.EqualValues(t, 1, calls.Load())
}

func TestValueStickyFailure(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("arquivo não encontrado")

	v := New(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	}, WithStickyFailure())

	_, err1 := v.Get(context.Background())
	_, err2 := v.Get(context.Background())

	assert.ErrorIs(t, err1, boom)
	assert.Equal(t, err1, err2)
	assert.EqualValues(t, 1, calls.Load())

	state, err := v.Peek()
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, err, boom)
}

func TestValueRetriesWithoutSticky(t *testing.T) {
	var calls atomic.Int32

	v := New(func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("model loading")
		}
		return 42, nil
	})

	_, err := v.Get(context.Background())
	require.Error(t, err)
	state, _ := v.Peek()
	assert.Equal(t, StateIdle, state)

	val, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.EqualValues(t, 2, calls.Load())
}

func TestValueCallerCancelDoesNotAbortInit(t *testing.T) {
	release := make(chan struct{})
	initCtxErr := make(chan error, 1)

	v := New(func(ctx context.Context) (string, error) {
		<-release
		initCtxErr <- ctx.Err()
		return "ok", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := v.Get(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.NoError(t, <-initCtxErr)

	val, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
}
