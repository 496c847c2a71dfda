package config

// PrefixConfig holds the mount points of each route group.
//
// Example environment variables:
//
//	API_PREFIX_RECOVERY=/api/v1/recovery
//	API_PREFIX_RECOVERY_METHODS=/api/v1/recovery-methods
//	API_PREFIX_DEVICES=/api/v1/devices
//	API_PREFIX_AUDIT=/api/v1/audit
//
// An empty prefix leaves that group unmounted.
type PrefixConfig struct {
	Recovery        string `env:"API_PREFIX_RECOVERY" env-default:"/api/v1/recovery"`               // public recovery flow
	RecoveryMethods string `env:"API_PREFIX_RECOVERY_METHODS" env-default:"/api/v1/recovery-methods"` // authenticated
	Devices         string `env:"API_PREFIX_DEVICES" env-default:"/api/v1/devices"`                 // authenticated
	Audit           string `env:"API_PREFIX_AUDIT" env-default:"/api/v1/audit"`                     // authenticated
}

// DefaultV1Prefixes returns the default v1 prefix configuration
func DefaultV1Prefixes() PrefixConfig {
	return PrefixConfig{
		Recovery:        "/api/v1/recovery",
		RecoveryMethods: "/api/v1/recovery-methods",
		Devices:         "/api/v1/devices",
		Audit:           "/api/v1/audit",
	}
}

func (p PrefixConfig) validate() ValidationErrors {
	check := func(field, value string) *ValidationError {
		return WhenSet(value, func() *ValidationError { return RequirePrefix(field, value) })
	}
	return CollectErrors(
		check("API_PREFIX_RECOVERY", p.Recovery),
		check("API_PREFIX_RECOVERY_METHODS", p.RecoveryMethods),
		check("API_PREFIX_DEVICES", p.Devices),
		check("API_PREFIX_AUDIT", p.Audit),
	)
}
