package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/tendant/simple-recovery/pkg/client"
	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
	"github.com/tendant/simple-recovery/pkg/identity"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
)

func inmemCommand() *cli.Command {
	return &cli.Command{
		Name:  "inmem",
		Usage: "Run the HTTP server on in-memory stores with a seeded demo account (development only)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "email",
				Usage: "email of the seeded account",
				Value: "demo@example.com",
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "initial credential of the seeded account",
				Value: "password123",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.App.Environment().IsProduction() {
				return fmt.Errorf("inmem must not run with APP_ENV=production")
			}
			cfg.Persistence = pkgconfig.PersistenceInMem
			cfg.Recovery.DebugTokens = true

			users := identity.NewInMemStore()
			st, err := buildStack(ctx, cfg, nil, users)
			if err != nil {
				return err
			}
			defer st.close()

			if err := seedDemoAccount(ctx, cfg, st, users, cmd.String("email"), cmd.String("password")); err != nil {
				return err
			}
			return runHTTP(ctx, cfg, st)
		},
	}
}

// seedDemoAccount creates one account with security questions and a backup
// email, and logs an access token for the authenticated routes
func seedDemoAccount(ctx context.Context, cfg pkgconfig.Config, st *stack, users *identity.InMemStore, email, password string) error {
	userID, err := users.CreateUser(email, password)
	if err != nil {
		return fmt.Errorf("failed to seed demo account: %w", err)
	}

	rc := client.RequestContext{IPAddress: "127.0.0.1", UserAgent: "recoveryd-seed"}
	_, err = st.services.RecoveryMethod.AddSecurityQuestions(ctx, userID, []recoverymethod.QuestionInput{
		{Question: "What city were you born in?", Answer: "springfield"},
		{Question: "What was the name of your first pet?", Answer: "rex"},
	}, rc)
	if err != nil {
		return fmt.Errorf("failed to seed security questions: %w", err)
	}
	if _, err := st.services.RecoveryMethod.AddRecoveryEmail(ctx, userID, "backup+"+email, rc); err != nil {
		return fmt.Errorf("failed to seed recovery email: %w", err)
	}

	token, err := client.IssueToken([]byte(cfg.JWT.Secret), userID, email, cfg.JWT.DevTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue demo token: %w", err)
	}

	slog.Info("In-memory recovery service seeded",
		"email", email,
		"user_id", userID,
		"answers", "springfield / rex",
	)
	slog.Info("Bearer token for authenticated routes", "token", token, "ttl", cfg.JWT.DevTokenTTL)
	return nil
}
