package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth/v5"

	auditapi "github.com/tendant/simple-recovery/pkg/audit/api"
	"github.com/tendant/simple-recovery/pkg/client"
	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
	deviceapi "github.com/tendant/simple-recovery/pkg/device/api"
	"github.com/tendant/simple-recovery/pkg/errors"
	recoveryapi "github.com/tendant/simple-recovery/pkg/recovery/api"
	recoverymethodapi "github.com/tendant/simple-recovery/pkg/recoverymethod/api"
	"github.com/tendant/simple-recovery/pkg/response"
)

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	// Prefix configuration for all routes
	PrefixConfig pkgconfig.PrefixConfig

	RecoveryHandle       *recoveryapi.RecoveryHandler
	RecoveryMethodHandle *recoverymethodapi.RecoveryMethodHandler
	DeviceHandle         *deviceapi.DeviceHandler
	AuditHandle          *auditapi.AuditHandler

	// JWT authentication for the account routes
	Auth *jwtauth.JWTAuth

	// RecoveryValidator checks public recovery requests against the API
	// document. Optional.
	RecoveryValidator func(http.Handler) http.Handler

	// Per-IP limit on the public recovery routes. Zero disables it.
	PerIPRequests int
	PerIPWindow   time.Duration
}

// SetupRoutes mounts the public recovery routes and the authenticated
// account routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	SetupPublicRoutes(router, cfg)
	SetupAuthenticatedRoutes(router, cfg)
}

// SetupPublicRoutes mounts only the recovery flow (no authentication required)
func SetupPublicRoutes(router chi.Router, cfg Config) {
	if cfg.PrefixConfig.Recovery == "" || cfg.RecoveryHandle == nil {
		return
	}

	router.Route(cfg.PrefixConfig.Recovery, func(r chi.Router) {
		if cfg.PerIPRequests > 0 && cfg.PerIPWindow > 0 {
			r.Use(perIPLimit(cfg.PerIPRequests, cfg.PerIPWindow))
		}
		if cfg.RecoveryValidator != nil {
			r.Use(cfg.RecoveryValidator)
		}
		r.Mount("/", recoveryapi.Handler(cfg.RecoveryHandle))
	})
	slog.Info("Recovery routes mounted", "prefix", cfg.PrefixConfig.Recovery, "per_ip_requests", cfg.PerIPRequests)
}

// SetupAuthenticatedRoutes mounts the routes that act on the caller's own
// account. Every request needs a bearer token (or access_token cookie)
// carrying a UUID user_id claim.
func SetupAuthenticatedRoutes(router chi.Router, cfg Config) {
	router.Group(func(r chi.Router) {
		r.Use(client.Verifier(cfg.Auth))
		r.Use(client.AuthUserMiddleware)

		if cfg.PrefixConfig.RecoveryMethods != "" && cfg.RecoveryMethodHandle != nil {
			r.Mount(cfg.PrefixConfig.RecoveryMethods, recoverymethodapi.Handler(cfg.RecoveryMethodHandle))
		}
		if cfg.PrefixConfig.Devices != "" && cfg.DeviceHandle != nil {
			r.Mount(cfg.PrefixConfig.Devices, deviceapi.Handler(cfg.DeviceHandle))
		}
		if cfg.PrefixConfig.Audit != "" && cfg.AuditHandle != nil {
			r.Mount(cfg.PrefixConfig.Audit, auditapi.Handler(cfg.AuditHandle))
		}
	})
}

func perIPLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("Recovery request rate limited", "ip", client.FromRequest(r).IPAddress, "path", r.URL.Path)
			response.Error(w, r, errors.RateLimited(window.String()))
		}),
	)
}
