package router

import (
	"context"
	"fmt"

	"github.com/tendant/simple-recovery/pkg/audit"
	auditapi "github.com/tendant/simple-recovery/pkg/audit/api"
	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
	"github.com/tendant/simple-recovery/pkg/device"
	deviceapi "github.com/tendant/simple-recovery/pkg/device/api"
	"github.com/tendant/simple-recovery/pkg/openapi"
	"github.com/tendant/simple-recovery/pkg/recovery"
	recoveryapi "github.com/tendant/simple-recovery/pkg/recovery/api"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
	recoverymethodapi "github.com/tendant/simple-recovery/pkg/recoverymethod/api"
)

// Services are the domain services behind the HTTP surface
type Services struct {
	Recovery       *recovery.RecoveryService
	RecoveryMethod *recoverymethod.RecoveryMethodService
	Device         *device.DeviceService
	Audit          *audit.AuditService
}

// NewConfig builds a router Config from services and loaded settings. It
// loads the embedded API document for request validation.
func NewConfig(ctx context.Context, svcs Services, cfg pkgconfig.Config) (Config, error) {
	doc, err := openapi.LoadRecovery(ctx)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load recovery API document: %w", err)
	}
	validator, err := openapi.RequestValidator(doc, cfg.Prefix.Recovery)
	if err != nil {
		return Config{}, fmt.Errorf("failed to build recovery request validator: %w", err)
	}

	routerCfg := Config{
		PrefixConfig:      cfg.Prefix,
		Auth:              cfg.JWT.Auth(),
		RecoveryValidator: validator,
	}
	if cfg.RateLimit.Enabled {
		routerCfg.PerIPRequests = cfg.RateLimit.PerIPRequests
		routerCfg.PerIPWindow = cfg.RateLimit.PerIPWindow
	}
	if svcs.Recovery != nil {
		routerCfg.RecoveryHandle = recoveryapi.NewRecoveryHandler(svcs.Recovery)
	}
	if svcs.RecoveryMethod != nil {
		routerCfg.RecoveryMethodHandle = recoverymethodapi.NewRecoveryMethodHandler(svcs.RecoveryMethod)
	}
	if svcs.Device != nil {
		routerCfg.DeviceHandle = deviceapi.NewDeviceHandler(svcs.Device)
	}
	if svcs.Audit != nil {
		routerCfg.AuditHandle = auditapi.NewAuditHandler(svcs.Audit)
	}
	return routerCfg, nil
}
