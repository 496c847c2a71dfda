package config

import (
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// JWTConfig holds the HS256 secret used to verify access tokens on the
// authenticated routes. Tokens are minted by the identity provider.
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	// DevTokenTTL is the lifetime of tokens printed by the inmem command
	DevTokenTTL time.Duration `env:"JWT_DEV_TOKEN_TTL" env-default:"1h"`
}

// Auth builds the jwtauth verifier for the configured secret
func (j JWTConfig) Auth() *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(j.Secret), nil)
}

func (j JWTConfig) validate(env Environment) ValidationErrors {
	errs := CollectErrors(RequireNonEmpty("JWT_SECRET", j.Secret))
	if env.IsProduction() && j.Secret == "very-secure-jwt-secret" {
		errs = append(errs, ValidationError{Field: "JWT_SECRET", Message: "must be changed from the default in production"})
	}
	return errs
}
