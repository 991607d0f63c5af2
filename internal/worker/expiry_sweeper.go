package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
)

// SweepLockKey は掃除を1インスタンスに絞るためのロックキー
const SweepLockKey = "hold-sweeper"

// HoldExpirer は期限切れ保留を expired にするインターフェース
type HoldExpirer interface {
	ExpireLapsedHolds(ctx context.Context, limit int) (application.SweepResult, error)
}

// Locker は複数インスタンス間の排他を取る
// 取得できなかった場合は acquired=false を返す
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// SweeperConfig は掃除の間隔と1回あたりの件数
type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
}

// ExpirySweeper は期限切れ保留を定期的に掃除するワーカー
type ExpirySweeper struct {
	expirer  HoldExpirer
	locker   Locker
	metrics  *metrics.Metrics
	cfg      SweeperConfig
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewExpirySweeper は新しい掃除ワーカーを作成
// locker と m は nil でもよい
func NewExpirySweeper(e HoldExpirer, locker Locker, m *metrics.Metrics, cfg SweeperConfig) *ExpirySweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	return &ExpirySweeper{
		expirer: e,
		locker:  locker,
		metrics: m,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start は掃除を開始する。ctx のキャンセルか Stop で戻る
// 起動直後に1回掃除してから間隔ごとの掃除に入る
func (s *ExpirySweeper) Start(ctx context.Context) {
	logger.Info("期限切れ保留の掃除を開始",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れ保留の掃除を停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("期限切れ保留の掃除を停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		logger.Error("期限切れ保留の掃除に失敗", zap.Error(err))
	}
}

// Stop は掃除を停止し、実行中のパスの終了を待つ
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// RunOnce は1回分の掃除を行う
// ロックを他のインスタンスが持っている場合は何もしない
func (s *ExpirySweeper) RunOnce(ctx context.Context) (application.SweepResult, error) {
	log := logger.Get()

	if s.locker != nil {
		release, acquired, err := s.locker.TryAcquire(ctx, SweepLockKey, s.cfg.LockTTL)
		if err != nil {
			return application.SweepResult{}, err
		}
		if !acquired {
			log.Debug("他のインスタンスが掃除中")
			return application.SweepResult{}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("掃除ロックの解放に失敗", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	res, err := s.expirer.ExpireLapsedHolds(ctx, s.cfg.BatchSize)
	s.observe(res, time.Since(start))
	if err != nil {
		return res, err
	}

	if res.Expired > 0 || res.Failed > 0 {
		log.Info("期限切れ保留を掃除",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("failed", res.Failed),
		)
	} else {
		log.Debug("期限切れ保留なし")
	}
	return res, nil
}

func (s *ExpirySweeper) observe(res application.SweepResult, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.SweepDuration.Observe(d.Seconds())
	s.metrics.SweepExpiredTotal.Add(float64(res.Expired))
	s.metrics.SweepFailuresTotal.Add(float64(res.Failed))
}
