package config

import "time"

// RecoveryConfig holds the account recovery policy
type RecoveryConfig struct {
	TokenExpiry         time.Duration `env:"RECOVERY_TOKEN_EXPIRY" env-default:"24h"`
	MaxAttempts         int           `env:"RECOVERY_MAX_ATTEMPTS" env-default:"3"`
	MinCredentialLength int           `env:"RECOVERY_MIN_CREDENTIAL_LENGTH" env-default:"8"`
	// DebugTokens returns raw tokens from the initiate endpoint. Development only.
	DebugTokens bool `env:"RECOVERY_DEBUG_TOKENS" env-default:"false"`
	// BaseURL is the page that receives ?token=... from the recovery link
	BaseURL string `env:"RECOVERY_BASE_URL" env-default:"http://localhost:3000/recover"`
}

func (r RecoveryConfig) validate(env Environment) ValidationErrors {
	errs := CollectErrors(
		RequirePositiveDuration("RECOVERY_TOKEN_EXPIRY", r.TokenExpiry),
		RequireInRange("RECOVERY_MAX_ATTEMPTS", r.MaxAttempts, 1, 10),
		RequirePositive("RECOVERY_MIN_CREDENTIAL_LENGTH", r.MinCredentialLength),
		RequireValidURL("RECOVERY_BASE_URL", r.BaseURL),
	)
	if env.IsProduction() && r.DebugTokens {
		errs = append(errs, ValidationError{Field: "RECOVERY_DEBUG_TOKENS", Message: "must be disabled in production"})
	}
	return errs
}

// DeviceConfig bounds the lifetime of trusted devices, in days
type DeviceConfig struct {
	DefaultTrustDays int `env:"DEVICE_DEFAULT_TRUST_DAYS" env-default:"30"`
	MaxTrustDays     int `env:"DEVICE_MAX_TRUST_DAYS" env-default:"365"`
}

func (d DeviceConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequirePositive("DEVICE_DEFAULT_TRUST_DAYS", d.DefaultTrustDays),
		RequirePositive("DEVICE_MAX_TRUST_DAYS", d.MaxTrustDays),
	)
	if d.DefaultTrustDays > d.MaxTrustDays {
		errs = append(errs, ValidationError{Field: "DEVICE_DEFAULT_TRUST_DAYS", Message: "must not exceed DEVICE_MAX_TRUST_DAYS"})
	}
	return errs
}

// AuditConfig selects synchronous or buffered audit writes
type AuditConfig struct {
	Async      bool `env:"AUDIT_ASYNC" env-default:"false"`
	BufferSize int  `env:"AUDIT_BUFFER_SIZE" env-default:"1024"`
	DropIfFull bool `env:"AUDIT_DROP_IF_FULL" env-default:"true"`
}

func (a AuditConfig) validate() ValidationErrors {
	if !a.Async {
		return nil
	}
	return CollectErrors(RequirePositive("AUDIT_BUFFER_SIZE", a.BufferSize))
}
