package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/obichijioke/event-app-fullstack-sub004/internal/bootstrap"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/hold"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/domain/ledger"
	"github.com/obichijioke/event-app-fullstack-sub004/internal/infrastructure/postgres"
)

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "期限切れの保留を1回だけ掃除する",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "1回あたりの最大件数 (0 は設定値)"},
		},
		Action: func(c *cli.Context) error {
			if limit := c.Int("limit"); limit > 0 {
				loadedConfig(c).Sweeper.BatchSize = limit
			}
			return withApp(c, func(app *bootstrap.App) error {
				res, err := app.NewSweeper().RunOnce(c.Context)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "scanned=%d expired=%d failed=%d\n", res.Scanned, res.Expired, res.Failed)
				return nil
			})
		},
	}
}

func holdsCommand() *cli.Command {
	return &cli.Command{
		Name:  "holds",
		Usage: "保留の参照と操作",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "イベントの保留一覧",
				ArgsUsage: "<event_id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "active / committed / released / expired で絞り込む"},
				},
				Action: func(c *cli.Context) error {
					eventID := c.Args().First()
					if eventID == "" {
						return errors.New("event_id を指定してください")
					}
					return withApp(c, func(app *bootstrap.App) error {
						holds, err := app.Holds.ListHolds(c.Context, eventID)
						if err != nil {
							return err
						}
						printHolds(c, holds, hold.Status(c.String("status")))
						return nil
					})
				},
			},
			{
				Name:      "release",
				Usage:     "保留を解放する",
				ArgsUsage: "<hold_id>...",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return errors.New("hold_id を指定してください")
					}
					return withApp(c, func(app *bootstrap.App) error {
						var errs []error
						for _, id := range c.Args().Slice() {
							h, err := app.Holds.ReleaseHold(c.Context, id)
							if err != nil {
								errs = append(errs, fmt.Errorf("%s: %w", id, err))
								continue
							}
							fmt.Fprintf(c.App.Writer, "%s\t%s\n", h.ID, h.Status)
						}
						return errors.Join(errs...)
					})
				},
			},
			{
				Name:      "commit",
				Usage:     "保留を確定する",
				ArgsUsage: "<hold_id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return errors.New("hold_id を指定してください")
					}
					return withApp(c, func(app *bootstrap.App) error {
						h, err := app.Holds.CommitHold(c.Context, id)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "%s\t%s\n", h.ID, h.Status)
						return nil
					})
				},
			},
		},
	}
}

func printHolds(c *cli.Context, holds []*hold.Hold, status hold.Status) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tTICKET_TYPE\tQTY\tREASON\tSTATUS\tEXPIRES_AT")
	for _, h := range holds {
		if status != "" && h.Status != status {
			continue
		}
		scope := "*"
		if h.CategoryID != nil {
			scope = *h.CategoryID
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			h.ID, scope, h.Quantity, h.Reason, h.Status, h.ExpiresAt.Format(time.RFC3339))
	}
}

func availabilityCommand() *cli.Command {
	return &cli.Command{
		Name:      "availability",
		Usage:     "イベントの在庫状況",
		ArgsUsage: "<event_id>",
		Action: func(c *cli.Context) error {
			eventID := c.Args().First()
			if eventID == "" {
				return errors.New("event_id を指定してください")
			}
			return withApp(c, func(app *bootstrap.App) error {
				a, err := app.Inventory.GetEventAvailability(c.Context, eventID)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				defer w.Flush()
				fmt.Fprintln(w, "SCOPE\tCAPACITY\tSOLD\tHELD\tLAPSED\tAVAILABLE")
				printSnapshot(w, "(unallocated)", a.Pool)
				for _, ca := range a.Categories {
					printSnapshot(w, ca.Category.Name, ca.Snapshot)
				}
				return nil
			})
		},
	}
}

func printSnapshot(w *tabwriter.Writer, name string, s ledger.Snapshot) {
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", name, s.Capacity, s.Sold, s.Held, s.Lapsed, s.Available)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "データベースのマイグレーション",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "最新まで適用する",
				Action: func(c *cli.Context) error {
					db, err := postgres.NewConnection(c.Context, &loadedConfig(c).Database)
					if err != nil {
						return err
					}
					defer db.Close()
					if err := postgres.RunMigrations(db.DB); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "migrated")
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "適用済みのバージョンを表示する",
				Action: func(c *cli.Context) error {
					db, err := postgres.NewConnection(c.Context, &loadedConfig(c).Database)
					if err != nil {
						return err
					}
					defer db.Close()
					version, dirty, err := postgres.MigrationVersion(db.DB)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "version=%d dirty=%t\n", version, dirty)
					return nil
				},
			},
		},
	}
}
