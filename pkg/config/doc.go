// Package config loads recoveryd settings from environment variables (and an
// optional config file) with cleanenv, and validates them.
//
// Every section is a struct with env tags and defaults:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pool, err := database.NewPool(ctx, cfg.Database.ToDbConfig())
//
// Validation collects all invalid fields instead of stopping at the first:
//
//	err := config.Validate(
//	    func() config.ValidationErrors {
//	        return config.CollectErrors(
//	            config.RequireNonEmpty("JWT_SECRET", secret),
//	            config.RequireInRange("RECOVERY_MAX_ATTEMPTS", n, 1, 10),
//	        )
//	    },
//	)
package config
