package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/tendant/simple-recovery/pkg/database"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "down",
				Usage: "roll back the most recent migration",
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "print migration status and exit",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			pool, err := database.NewPool(ctx, cfg.Database.ToDbConfig())
			if err != nil {
				return err
			}
			defer pool.Close()

			switch {
			case cmd.Bool("status"):
				return database.MigrationStatus(ctx, pool)
			case cmd.Bool("down"):
				return database.MigrateDown(ctx, pool)
			default:
				return database.Migrate(ctx, pool)
			}
		},
	}
}
