package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	PersistencePostgres = "postgres"
	PersistenceInMem    = "inmem"
)

// AppConfig holds the HTTP listener and logging settings
type AppConfig struct {
	Env       string `env:"APP_ENV" env-default:"development"`
	Host      string `env:"APP_HOST" env-default:"0.0.0.0"`
	Port      uint16 `env:"APP_PORT" env-default:"4000"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

func (a AppConfig) Environment() Environment {
	return ParseEnvironment(a.Env)
}

func (a AppConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireValidPort("APP_PORT", a.Port),
		RequireOneOf("LOG_LEVEL", strings.ToLower(a.LogLevel), []string{"debug", "info", "warn", "error"}),
		RequireOneOf("LOG_FORMAT", strings.ToLower(a.LogFormat), []string{"text", "json"}),
	)
}

// Config is the complete recoveryd configuration
type Config struct {
	App         AppConfig
	Persistence string `env:"PERSISTENCE" env-default:"postgres"`
	Database    DatabaseConfig
	Email       EmailConfig
	Twilio      TwilioConfig
	JWT         JWTConfig
	Recovery    RecoveryConfig
	Device      DeviceConfig
	RateLimit   RateLimitConfig
	Audit       AuditConfig
	Prefix      PrefixConfig
}

// Load reads the configuration from the environment, or from path (YAML,
// TOML, JSON or .env) with environment variables taking precedence. The
// result is validated.
func Load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section. Database settings are only required for
// postgres persistence.
func (c Config) Validate() error {
	env := c.App.Environment()
	validators := []Validator{
		c.App.validate,
		func() ValidationErrors {
			return CollectErrors(RequireOneOf("PERSISTENCE", c.Persistence, []string{PersistencePostgres, PersistenceInMem}))
		},
		c.Email.validate,
		func() ValidationErrors { return c.JWT.validate(env) },
		func() ValidationErrors { return c.Recovery.validate(env) },
		c.Device.validate,
		c.RateLimit.validate,
		c.Audit.validate,
		c.Prefix.validate,
	}
	if c.Persistence == PersistencePostgres {
		validators = append(validators, c.Database.validate)
	}
	return Validate(validators...)
}

// Usage returns the environment variable reference for --help output
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return desc
}
