package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/api"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/api/handler"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/api/middleware"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/bootstrap"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/config"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/postgres"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/tracing"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "設定ファイルのパス (省略時は環境変数のみ)")
	noMigrate := pflag.Bool("no-migrate", false, "起動時のマイグレーションを行わない")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Set(logger.NewLogger(cfg.App.Env, cfg.App.LogLevel))
	defer logger.Sync()

	if err := run(cfg, !*noMigrate); err != nil {
		logger.Fatal("サーバーの実行に失敗", zap.Error(err))
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}

func run(cfg *config.Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("トレースの終了に失敗", zap.Error(err))
		}
	}()

	m := metrics.Init()
	app, err := bootstrap.New(ctx, cfg, m, migrate)
	if err != nil {
		return err
	}
	defer app.Close()

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	e.Use(middleware.PrometheusMiddleware(m))
	middleware.SetupMiddleware(e, cfg.Tracing.ServiceName)

	handler.Register(e, handler.Handlers{
		Health: handler.NewHealthHandler(
			handler.HealthCheck{Name: "postgres", Check: func(ctx context.Context) error { return postgres.Ping(ctx, app.DB) }},
			handler.HealthCheck{Name: "redis", Check: app.PingRedis},
		),
		Holds:        handler.NewHoldHandler(app.Holds),
		Availability: handler.NewAvailabilityHandler(app.Inventory),
		Pricing:      handler.NewPricingHandler(app.Pricing),
		Admin:        handler.NewAdminHandler(app.Inventory),
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("サーバー起動エラー: %w", err)
		}
		return nil
	})

	if cfg.Sweeper.Enabled {
		sweeper := app.NewSweeper()
		g.Go(func() error {
			sweeper.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("サーバーをシャットダウンしています...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})

	return g.Wait()
}
