package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
)

func envCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "List the environment variables recoveryd reads",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(cmd.Root().Writer, pkgconfig.Usage())
			return err
		},
	}
}
