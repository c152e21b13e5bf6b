package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateBoundsConcurrency(t *testing.T) {
	gate := NewGate(5)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Do(context.Background(), func(ctx context.Context) error {
				assert.LessOrEqual(t, gate.InFlight(), int64(5))
				time.Sleep(10 * time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), gate.Peak())
	assert.Equal(t, int64(0), gate.InFlight())
}

func TestGateCancelledWhileWaiting(t *testing.T) {
	gate := NewGate(1)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = gate.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := gate.Do(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	close(release)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestGatePropagatesError(t *testing.T) {
	gate := NewGate(2)
	err := gate.Do(context.Background(), func(ctx context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, int64(0), gate.InFlight())
}
