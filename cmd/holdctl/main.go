package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/bootstrap"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/config"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/logger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/pkg/metrics"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "holdctl",
		Usage: "在庫保留の運用コマンド",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "設定ファイルのパス",
				EnvVars: []string{"HOLDCTL_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			logger.Set(logger.NewLogger(cfg.App.Env, cfg.App.LogLevel))
			c.App.Metadata = map[string]interface{}{"config": cfg}
			return nil
		},
		After: func(c *cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			sweepCommand(),
			holdsCommand(),
			availabilityCommand(),
			migrateCommand(),
		},
	}
}

func loadedConfig(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

// withApp はサービスを組み立てて fn を実行し、終了時に接続を閉じる
func withApp(c *cli.Context, fn func(app *bootstrap.App) error) error {
	app, err := bootstrap.New(c.Context, loadedConfig(c), metrics.Get(), false)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
