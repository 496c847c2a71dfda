package config

import "time"

// RateLimitConfig covers both throttles on the public recovery surface:
// a per-IP request limit on every route, and a per-email limit on initiation
// shared across instances through Redis when REDIS_URL is set.
type RateLimitConfig struct {
	Enabled bool `env:"RATELIMIT_ENABLED" env-default:"true"`

	PerIPRequests int           `env:"RATELIMIT_PER_IP_REQUESTS" env-default:"60"`
	PerIPWindow   time.Duration `env:"RATELIMIT_PER_IP_WINDOW" env-default:"1m"`

	InitiateLimit  int           `env:"RATELIMIT_INITIATE_LIMIT" env-default:"3"`
	InitiateWindow time.Duration `env:"RATELIMIT_INITIATE_WINDOW" env-default:"1h"`

	RedisURL    string `env:"REDIS_URL"`
	RedisPrefix string `env:"RATELIMIT_REDIS_PREFIX" env-default:"recovery:initiate:"`
}

// UseRedis reports whether initiation limits are shared through Redis
func (r RateLimitConfig) UseRedis() bool {
	return r.Enabled && r.RedisURL != ""
}

func (r RateLimitConfig) validate() ValidationErrors {
	if !r.Enabled {
		return nil
	}
	return CollectErrors(
		RequirePositive("RATELIMIT_PER_IP_REQUESTS", r.PerIPRequests),
		RequirePositiveDuration("RATELIMIT_PER_IP_WINDOW", r.PerIPWindow),
		RequirePositive("RATELIMIT_INITIATE_LIMIT", r.InitiateLimit),
		RequirePositiveDuration("RATELIMIT_INITIATE_WINDOW", r.InitiateWindow),
	)
}
