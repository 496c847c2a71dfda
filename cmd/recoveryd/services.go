package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-recovery/pkg/audit"
	pkgconfig "github.com/tendant/simple-recovery/pkg/config"
	"github.com/tendant/simple-recovery/pkg/device"
	"github.com/tendant/simple-recovery/pkg/identity"
	"github.com/tendant/simple-recovery/pkg/notification"
	"github.com/tendant/simple-recovery/pkg/ratelimit"
	"github.com/tendant/simple-recovery/pkg/recovery"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
	"github.com/tendant/simple-recovery/pkg/router"
)

// stack is the wired service graph plus what must be released on shutdown
type stack struct {
	services router.Services
	redis    *redis.Client
}

// close waits for in-flight recovery link deliveries, then drains the audit
// buffer, then releases Redis.
func (s *stack) close() {
	if s.services.Recovery != nil {
		s.services.Recovery.Wait()
	}
	if s.services.Audit != nil {
		s.services.Audit.Close()
		if dropped := s.services.Audit.Dropped(); dropped > 0 {
			slog.Warn("Audit events dropped", "count", dropped)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Error("Failed closing redis client", "error", err)
		}
	}
}

// buildStack wires every service for the configured persistence. pool is nil
// for in-memory persistence.
func buildStack(ctx context.Context, cfg pkgconfig.Config, pool *pgxpool.Pool, identityStore identity.Store) (*stack, error) {
	persistence := cfg.Persistence
	st := &stack{}

	// Audit first: every other service records into it
	var auditRepoCfg audit.RepositoryConfig
	var methodRepoCfg recoverymethod.RepositoryConfig
	var deviceRepoCfg device.RepositoryConfig
	var requestRepoCfg recovery.RepositoryConfig
	if pool != nil {
		auditRepoCfg.DB = pool
		methodRepoCfg.DB = pool
		deviceRepoCfg.DB = pool
		requestRepoCfg.DB = pool
	}

	auditRepo, err := audit.NewAuditRepository(persistence, auditRepoCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit repository: %w", err)
	}
	var auditOpts []audit.Option
	if cfg.Audit.Async {
		auditOpts = append(auditOpts, audit.WithAsync(audit.DispatcherConfig{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}))
	}
	st.services.Audit = audit.NewAuditService(auditRepo, auditOpts...)

	methodRepo, err := recoverymethod.NewRecoveryMethodRepository(persistence, methodRepoCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create recovery method repository: %w", err)
	}
	st.services.RecoveryMethod = recoverymethod.NewRecoveryMethodService(methodRepo,
		recoverymethod.WithAuditRecorder(st.services.Audit),
	)

	deviceRepo, err := device.NewDeviceRepository(persistence, deviceRepoCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create device repository: %w", err)
	}
	st.services.Device = device.NewDeviceService(deviceRepo,
		device.WithAuditRecorder(st.services.Audit),
		device.WithTrustDays(cfg.Device.DefaultTrustDays, cfg.Device.MaxTrustDays),
	)

	requestRepo, err := recovery.NewRecoveryRequestRepository(persistence, requestRepoCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create recovery request repository: %w", err)
	}

	recoveryOpts := []recovery.Option{
		recovery.WithTokenExpiry(cfg.Recovery.TokenExpiry),
		recovery.WithMaxAttempts(cfg.Recovery.MaxAttempts),
		recovery.WithMinCredentialLength(cfg.Recovery.MinCredentialLength),
		recovery.WithDebugTokens(cfg.Recovery.DebugTokens),
		recovery.WithDeviceRevoker(st.services.Device),
		recovery.WithAuditRecorder(st.services.Audit),
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		recoveryOpts = append(recoveryOpts, recovery.WithNotifier(notifier, cfg.Recovery.BaseURL))
	} else {
		slog.Warn("No email or SMS delivery configured; recovery links will not be sent")
	}

	limiter, redisClient, err := buildLimiter(ctx, cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	st.redis = redisClient
	recoveryOpts = append(recoveryOpts, recovery.WithLimiter(limiter))

	st.services.Recovery = recovery.NewRecoveryService(requestRepo, st.services.RecoveryMethod, identityStore, recoveryOpts...)

	if cfg.Recovery.DebugTokens {
		slog.Warn("Recovery debug tokens are enabled; raw tokens are returned by the initiate endpoint")
	}
	return st, nil
}

// buildNotifier returns nil when neither SMTP nor Twilio is configured
func buildNotifier(cfg pkgconfig.Config) (*notification.NotificationManager, error) {
	var opts []notification.NotificationManagerOption
	if cfg.Email.IsConfigured() {
		opts = append(opts, notification.WithSMTP(cfg.Email.ToSMTPConfig()))
		slog.Info("Email delivery configured", "host", cfg.Email.Host, "port", cfg.Email.Port, "from", cfg.Email.From)
	}
	if cfg.Twilio.IsConfigured() {
		opts = append(opts, notification.WithTwilio(cfg.Twilio.ToNotificationTwilioConfig()))
		slog.Info("SMS delivery configured", "from", cfg.Twilio.TwilioFrom)
	}
	if len(opts) == 0 {
		return nil, nil
	}
	opts = append(opts, notification.WithRecoveryTemplates())

	manager, err := notification.NewNotificationManagerWithOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification manager: %w", err)
	}
	return manager, nil
}

// buildLimiter throttles recovery initiation per email. Redis shares the
// counters across instances.
func buildLimiter(ctx context.Context, cfg pkgconfig.RateLimitConfig) (ratelimit.Limiter, *redis.Client, error) {
	if !cfg.Enabled {
		return ratelimit.NoopLimiter{}, nil, nil
	}
	if !cfg.UseRedis() {
		slog.Info("Initiation rate limit in memory", "limit", cfg.InitiateLimit, "window", cfg.InitiateWindow)
		return ratelimit.NewInMemLimiter(cfg.InitiateLimit, cfg.InitiateWindow), nil, nil
	}

	client, err := ratelimit.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	slog.Info("Initiation rate limit in redis", "limit", cfg.InitiateLimit, "window", cfg.InitiateWindow)
	return ratelimit.NewRedisLimiter(client, cfg.InitiateLimit, cfg.InitiateWindow, cfg.RedisPrefix), client, nil
}
