//go:build integration
// +build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/redis"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
	tu "github.com/obichijioke/event-app-fullstack-sub004/internal/testutil"
)

func TestLockManager_AcquireLock(t *testing.T) {
	client := tu.Redis(t)
	ctx := context.Background()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	manager := redis.NewLockManager(client, redis.WithLockMetrics(m))

	t.Run("ロックを取得できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-1", 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)
		defer lock.Release(ctx)
	})

	t.Run("同じキーのロックは取得できない", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-2", 5*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.AcquireLock(ctx, "test-key-2", 5*time.Second)
		assert.ErrorIs(t, err, redis.ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-key-3", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, lock1.Release(ctx))

		lock2, err := manager.AcquireLock(ctx, "test-key-3", 5*time.Second)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("二重解放は所有者エラー", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-5", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
		assert.ErrorIs(t, lock.Release(ctx), redis.ErrLockNotOwned)
	})

	t.Run("延長できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-key-6", time.Second)
		require.NoError(t, err)
		defer lock.Release(ctx)
		require.NoError(t, lock.Extend(ctx, 10*time.Second))
		ttl, err := client.PTTL(ctx, "lock:test-key-6").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 5*time.Second)
	})

	assert.Greater(t, testutil.CollectAndCount(m.DistributedLockDuration), 0)
}

func TestLockManager_TryAcquire(t *testing.T) {
	client := tu.Redis(t)
	ctx := context.Background()
	manager := redis.NewLockManager(client)

	release, ok, err := manager.TryAcquire(ctx, "sweeper", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = manager.TryAcquire(ctx, "sweeper", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "保持中は取得できない")

	require.NoError(t, release(ctx))
	release, ok, err = manager.TryAcquire(ctx, "sweeper", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, release(ctx))
}

func TestLockManager_TryAcquireKeepsLockAlive(t *testing.T) {
	client := tu.Redis(t)
	ctx := context.Background()
	manager := redis.NewLockManager(client)

	release, ok, err := manager.TryAcquire(ctx, "long-sweep", 300*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// TTL を大きく超えても保持したまま
	time.Sleep(time.Second)
	ttl, err := client.PTTL(ctx, "lock:long-sweep").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	_, ok, err = manager.TryAcquire(ctx, "long-sweep", 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "延長中は他から取得できない")

	require.NoError(t, release(ctx))
	exists, err := client.Exists(ctx, "lock:long-sweep").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestDistributedLock_KeepAlive(t *testing.T) {
	client := tu.Redis(t)
	ctx := context.Background()
	manager := redis.NewLockManager(client)

	t.Run("停止後は TTL で失効する", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "keepalive-1", 300*time.Millisecond)
		require.NoError(t, err)

		stop := lock.KeepAlive(ctx)
		time.Sleep(600 * time.Millisecond)
		stop()

		time.Sleep(500 * time.Millisecond)
		exists, err := client.Exists(ctx, "lock:keepalive-1").Result()
		require.NoError(t, err)
		assert.Zero(t, exists)
	})

	t.Run("所有権を失ったら延長をやめる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "keepalive-2", 300*time.Millisecond)
		require.NoError(t, err)

		stop := lock.KeepAlive(ctx)
		require.NoError(t, client.Set(ctx, "lock:keepalive-2", "other", time.Minute).Err())
		time.Sleep(300 * time.Millisecond)
		stop()

		v, err := client.Get(ctx, "lock:keepalive-2").Result()
		require.NoError(t, err)
		assert.Equal(t, "other", v)
	})
}
