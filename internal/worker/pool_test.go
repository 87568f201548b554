// internal/worker/pool_test.go
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-engine/internal/common/logger"
)

func TestPool_ExecutesTasks(t *testing.T) {
	pool := NewPool(2, 8, logger.NewNoOpLogger())
	pool.Start(context.Background())

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := pool.TrySubmit(func(ctx context.Context) {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		})
		require.True(t, ok)
	}

	wg.Wait()
	assert.Equal(t, int32(5), atomic.LoadInt32(&count))

	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestPool_TrySubmit_QueueFull(t *testing.T) {
	pool := NewPool(1, 1, logger.NewNoOpLogger())
	// Not started: nothing drains the queue.

	assert.True(t, pool.TrySubmit(func(ctx context.Context) {}))
	assert.False(t, pool.TrySubmit(func(ctx context.Context) {}))
}

func TestPool_Shutdown_DrainsQueue(t *testing.T) {
	pool := NewPool(1, 8, logger.NewNoOpLogger())

	var count int32
	for i := 0; i < 4; i++ {
		require.True(t, pool.TrySubmit(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&count, 1)
		}))
	}

	pool.Start(context.Background())
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Equal(t, int32(4), atomic.LoadInt32(&count), "pending tasks must run before shutdown returns")
	assert.False(t, pool.TrySubmit(func(ctx context.Context) {}), "no intake after shutdown")
}

func TestPool_Shutdown_Timeout(t *testing.T) {
	pool := NewPool(1, 4, logger.NewNoOpLogger())
	pool.Start(context.Background())

	release := make(chan struct{})
	require.True(t, pool.TrySubmit(func(ctx context.Context) {
		<-release
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestPool_RecoversFromPanic(t *testing.T) {
	pool := NewPool(1, 4, logger.NewNoOpLogger())
	pool.Start(context.Background())

	var ran int32
	require.True(t, pool.TrySubmit(func(ctx context.Context) {
		panic("boom")
	}))
	require.True(t, pool.TrySubmit(func(ctx context.Context) {
		atomic.AddInt32(&ran, 1)
	}))

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran), "worker must survive a panicking task")
}
