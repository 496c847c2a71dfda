package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tendant/chi-demo/app"
	"github.com/urfave/cli/v3"

	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
	"github.com/tendant/simple-recovery/pkg/database"
	"github.com/tendant/simple-recovery/pkg/identity"
	"github.com/tendant/simple-recovery/pkg/router"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server on PostgreSQL",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "apply pending migrations before serving",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Persistence != pkgconfig.PersistencePostgres {
				return fmt.Errorf("serve requires PERSISTENCE=postgres, got %q; use the inmem command for development", cfg.Persistence)
			}

			pool, err := database.NewPool(ctx, cfg.Database.ToDbConfig())
			if err != nil {
				return err
			}
			defer pool.Close()

			if cmd.Bool("migrate") {
				if err := database.Migrate(ctx, pool); err != nil {
					return err
				}
			}

			st, err := buildStack(ctx, cfg, pool, identity.NewPostgresStore(pool))
			if err != nil {
				return err
			}
			defer st.close()

			return runHTTP(ctx, cfg, st)
		},
	}
}

// newHandler mounts the health checks and the API routes on a chi-demo app
func newHandler(ctx context.Context, cfg pkgconfig.Config, st *stack) (http.Handler, error) {
	routerCfg, err := router.NewConfig(ctx, st.services, cfg)
	if err != nil {
		return nil, err
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	router.SetupRoutes(server.R, routerCfg)
	return server.R, nil
}

// runHTTP serves until SIGINT/SIGTERM, then shuts the listener down
func runHTTP(ctx context.Context, cfg pkgconfig.Config, st *stack) error {
	handler, err := newHandler(ctx, cfg, st)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.App.Host, strconv.Itoa(int(cfg.App.Port)))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", addr, "persistence", cfg.Persistence,
			"recovery", cfg.Prefix.Recovery, "recovery_methods", cfg.Prefix.RecoveryMethods,
			"devices", cfg.Prefix.Devices, "audit", cfg.Prefix.Audit)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
