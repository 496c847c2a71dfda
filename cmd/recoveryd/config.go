package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
)

// loadConfig loads the dotenv file (without overriding variables already
// set), reads and validates the configuration and sets up logging.
func loadConfig(cmd *cli.Command) (pkgconfig.Config, error) {
	envFile := cmd.String("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return pkgconfig.Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		} else {
			slog.Info("Loaded environment file", "path", envFile)
		}
	}

	cfg, err := pkgconfig.Load(cmd.String("config"))
	if err != nil {
		return pkgconfig.Config{}, err
	}
	setupLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	return cfg, nil
}
