package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// AvailabilityCache は在庫スナップショットの短期キャッシュ
// 確保の判定には使わず、参照系の応答だけが読む
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

type cachedSnapshot struct {
	Capacity  int `json:"capacity"`
	Sold      int `json:"sold"`
	Held      int `json:"held"`
	Lapsed    int `json:"lapsed"`
	Available int `json:"available"`
}

// Get はスコープのスナップショットをキャッシュから取得する
func (c *AvailabilityCache) Get(ctx context.Context, scope ledger.Scope) (ledger.Snapshot, error) {
	raw, err := c.client.Get(ctx, c.key(scope)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ledger.Snapshot{}, ErrCacheMiss
		}
		return ledger.Snapshot{}, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var cs cachedSnapshot
	if err := json.Unmarshal(raw, &cs); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("キャッシュの復元に失敗: %w", err)
	}
	return ledger.Snapshot{
		Scope:     scope,
		Capacity:  cs.Capacity,
		Sold:      cs.Sold,
		Held:      cs.Held,
		Lapsed:    cs.Lapsed,
		Available: cs.Available,
	}, nil
}

// Set はスナップショットをキャッシュに保存する
func (c *AvailabilityCache) Set(ctx context.Context, snap ledger.Snapshot) error {
	raw, err := json.Marshal(cachedSnapshot{
		Capacity:  snap.Capacity,
		Sold:      snap.Sold,
		Held:      snap.Held,
		Lapsed:    snap.Lapsed,
		Available: snap.Available,
	})
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(snap.Scope), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はスコープのキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, scopes ...ledger.Scope) error {
	if len(scopes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(scopes))
	for _, s := range scopes {
		keys = append(keys, c.key(s))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) key(scope ledger.Scope) string {
	return "availability:" + scope.Key()
}
