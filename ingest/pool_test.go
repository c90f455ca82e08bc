package ingest

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/termhub/termsync/errors"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := NewPool(context.Background(), 4, 2, zap.NewNop().Sugar())

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		pool.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	require.NoError(t, pool.Drain(time.Second))
	assert.Equal(t, int32(20), ran.Load())
}

func TestPoolRetainsFirstError(t *testing.T) {
	pool := NewPool(context.Background(), 1, 1, zap.NewNop().Sugar())

	boom := errors.New("boom")
	pool.Submit(func(ctx context.Context) error { return boom })
	pool.Submit(func(ctx context.Context) error { return errors.New("later") })

	err := pool.Drain(time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPoolKeepsWorkingAfterFailure(t *testing.T) {
	pool := NewPool(context.Background(), 1, 1, zap.NewNop().Sugar())

	var ran atomic.Int32
	pool.Submit(func(ctx context.Context) error { return errors.New("boom") })
	pool.Submit(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	require.Error(t, pool.Drain(time.Second))
	assert.Equal(t, int32(1), ran.Load())
}

func TestPoolDrainTimeout(t *testing.T) {
	pool := NewPool(context.Background(), 1, 1, zap.NewNop().Sugar())

	release := make(chan struct{})
	pool.Submit(func(ctx context.Context) error {
		<-release
		return nil
	})

	err := pool.Drain(20 * time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	close(release)
}

func TestPoolSubmitBlocksWhenQueueFull(t *testing.T) {
	pool := NewPool(context.Background(), 1, 1, zap.NewNop().Sugar())

	release := make(chan struct{})
	// occupies the single worker
	pool.Submit(func(ctx context.Context) error {
		<-release
		return nil
	})
	// fills the queue
	pool.Submit(func(ctx context.Context) error { return nil })

	submitted := make(chan struct{})
	go func() {
		pool.Submit(func(ctx context.Context) error { return nil })
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("submit returned while queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("submit never unblocked")
	}
	require.NoError(t, pool.Drain(time.Second))
}
