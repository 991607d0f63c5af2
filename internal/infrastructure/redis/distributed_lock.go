package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client  *redis.Client
	key     string
	value   string
	ttl     time.Duration
	metrics *metrics.Metrics
}

// LockManager は分散ロックを管理する
type LockManager struct {
	client  *redis.Client
	metrics *metrics.Metrics
}

// LockOption は LockManager の設定
type LockOption func(*LockManager)

// WithLockMetrics はロック操作の所要時間を記録する
func WithLockMetrics(m *metrics.Metrics) LockOption {
	return func(lm *LockManager) { lm.metrics = m }
}

func NewLockManager(client *redis.Client, opts ...LockOption) *LockManager {
	m := &LockManager{client: client}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	start := time.Now()
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	// キーが存在しない場合のみ設定
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		observe(m.metrics, "acquire", "failed", start)
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		observe(m.metrics, "acquire", "failed", start)
		return nil, ErrLockNotAcquired
	}
	observe(m.metrics, "acquire", "success", start)

	return &DistributedLock{
		client:  m.client,
		key:     lockKey,
		value:   lockValue,
		ttl:     ttl,
		metrics: m.metrics,
	}, nil
}

// TryAcquire は1回だけロックを試みる
// 他のプロセスが保持している場合は acquired=false でエラーは返さない
// 取得したロックは release を呼ぶまで KeepAlive で延長され続ける
func (m *LockManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error) {
	lock, err := m.AcquireLock(ctx, key, ttl)
	if errors.Is(err, ErrLockNotAcquired) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stop := lock.KeepAlive(ctx)
	return func(ctx context.Context) error {
		stop()
		return lock.Release(ctx)
	}, true, nil
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	start := time.Now()
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		observe(l.metrics, "release", "failed", start)
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		observe(l.metrics, "release", "failed", start)
		return ErrLockNotOwned
	}
	observe(l.metrics, "release", "success", start)
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	start := time.Now()
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		observe(l.metrics, "extend", "failed", start)
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		observe(l.metrics, "extend", "failed", start)
		return ErrLockNotOwned
	}
	observe(l.metrics, "extend", "success", start)
	return nil
}

// KeepAlive は取得時の TTL の 1/3 ごとにロックを延長する
// 返り値の stop で延長を止める。所有権を失った時点でも止まる
func (l *DistributedLock) KeepAlive(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	interval := max(l.ttl/3, time.Millisecond)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := l.Extend(ctx, l.ttl)
				if err == nil || ctx.Err() != nil {
					continue
				}
				logger.Warn("ロックの延長に失敗", zap.String("key", l.key), zap.Error(err))
				if errors.Is(err, ErrLockNotOwned) {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func observe(m *metrics.Metrics, operation, status string, start time.Time) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
