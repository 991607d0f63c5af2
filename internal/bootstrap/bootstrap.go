// Package bootstrap は設定から依存関係を組み立てる
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/application"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/config"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/pricing"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/messaging"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/postgres"
	redisinfra "github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/redis"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/worker"
)

// App は組み立て済みのサービス一式
type App struct {
	Config    *config.Config
	DB        *sqlx.DB
	Redis     *goredis.Client // Redis 無効時は nil
	Metrics   *metrics.Metrics
	Holds     *application.HoldService
	Inventory *application.InventoryService
	Pricing   *application.PricingService
	Locker    worker.Locker // Redis 無効時は nil

	publisher message.Publisher
}

// New はデータベースと Redis に接続してサービスを組み立てる
// migrate が true ならスキーマを最新にする
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics, migrate bool) (*App, error) {
	db, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: db, Metrics: m}

	if migrate {
		if err := postgres.RunMigrations(db.DB); err != nil {
			app.Close()
			return nil, err
		}
	}

	holdOpts := []application.HoldOption{
		application.WithMetrics(m),
		application.WithTTLPolicy(application.TTLPolicy{
			Checkout:      cfg.Hold.CheckoutTTL,
			Reservation:   cfg.Hold.ReservationTTL,
			OrganizerHold: cfg.Hold.OrganizerHoldTTL,
			Max:           cfg.Hold.MaxTTL,
		}),
	}
	var invOpts []application.InventoryOption

	if cfg.Redis.Enabled {
		app.Redis = redisinfra.NewClient(&cfg.Redis)
		if err := redisinfra.Ping(ctx, app.Redis); err != nil {
			app.Close()
			return nil, err
		}
		app.Locker = redisinfra.NewLockManager(app.Redis, redisinfra.WithLockMetrics(m))

		cache := redisinfra.NewAvailabilityCache(app.Redis, cfg.Cache.AvailabilityTTL)
		holdOpts = append(holdOpts, application.WithCache(cache))
		invOpts = append(invOpts, application.WithInventoryCache(cache, m))

		if cfg.Messaging.Enabled {
			pub, err := messaging.NewRedisPublisher(app.Redis, messaging.NewZapAdapter(logger.Get()))
			if err != nil {
				app.Close()
				return nil, err
			}
			app.publisher = pub
			holdOpts = append(holdOpts, application.WithPublisher(messaging.NewHoldPublisher(pub, cfg.Messaging.TopicPrefix)))
		}
	} else if cfg.Messaging.Enabled {
		logger.Warn("Redis が無効のためイベント配信を行いません")
	}

	tm := postgres.NewTxManager(db)
	events := postgres.NewEventRepository(db)
	categories := postgres.NewCategoryRepository(db)
	holds := postgres.NewHoldRepository(db)
	promos := postgres.NewPromoRepository(db)
	ledger := postgres.NewLedger(db)

	app.Holds = application.NewHoldService(tm, holds, categories, events, ledger, holdOpts...)
	app.Inventory = application.NewInventoryService(tm, events, categories, promos, ledger, invOpts...)
	app.Pricing = application.NewPricingService(categories, holds, promos, pricing.FeeSchedule{
		PlatformRateBP:   cfg.Pricing.PlatformFeeBP,
		ProcessingRateBP: cfg.Pricing.ProcessingFeeBP,
	}, nil)

	return app, nil
}

// NewSweeper は設定に従って掃除ワーカーを作る
func (a *App) NewSweeper() *worker.ExpirySweeper {
	return worker.NewExpirySweeper(a.Holds, a.Locker, a.Metrics, worker.SweeperConfig{
		Interval:  a.Config.Sweeper.Interval,
		BatchSize: a.Config.Sweeper.BatchSize,
		LockTTL:   a.Config.Sweeper.LockTTL,
	})
}

// PingRedis は Redis 無効時は常に成功する
func (a *App) PingRedis(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return redisinfra.Ping(ctx, a.Redis)
}

// Close は接続をすべて閉じる
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if len(errs) > 0 {
		logger.Warn("接続のクローズに失敗", zap.Errors("errors", errs))
	}
	return errors.Join(errs...)
}
