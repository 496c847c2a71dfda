package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "recoveryd",
		Usage: "Account recovery, trusted devices and security audit service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML, TOML or JSON config file; environment variables take precedence",
				Sources: cli.EnvVars("RECOVERYD_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before reading the environment",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			inmemCommand(),
			envCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("recoveryd failed", "error", err)
		os.Exit(1)
	}
}
