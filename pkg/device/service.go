package device

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-recovery/pkg/audit"
	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/clock"
	"github.com/tendant/simple-recovery/pkg/errors"
)

const maxDeviceNameLength = 255

// TrustStatus is the result of a trusted-device check
type TrustStatus struct {
	Trusted    bool       `json:"trusted"`
	DeviceID   *uuid.UUID `json:"deviceId,omitempty"`
	DeviceName string     `json:"deviceName,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type DeviceService struct {
	repo             TrustedDeviceRepository
	auditRecorder    audit.Recorder
	clock            clock.Clock
	defaultTrustDays int
	maxTrustDays     int
}

type Option func(*DeviceService)

func WithClock(c clock.Clock) Option {
	return func(s *DeviceService) {
		s.clock = c
	}
}

func WithAuditRecorder(r audit.Recorder) Option {
	return func(s *DeviceService) {
		if r != nil {
			s.auditRecorder = r
		}
	}
}

// WithTrustDays sets the trust lifetime used when the caller gives none and
// the largest lifetime a caller may ask for.
func WithTrustDays(defaultDays, maxDays int) Option {
	return func(s *DeviceService) {
		if defaultDays > 0 {
			s.defaultTrustDays = defaultDays
		}
		if maxDays > 0 {
			s.maxTrustDays = maxDays
		}
	}
}

func NewDeviceService(repo TrustedDeviceRepository, opts ...Option) *DeviceService {
	s := &DeviceService{
		repo:             repo,
		auditRecorder:    audit.NoopRecorder{},
		clock:            clock.New(),
		defaultTrustDays: DefaultTrustDays,
		maxTrustDays:     MaxTrustDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultTrustDays > s.maxTrustDays {
		s.defaultTrustDays = s.maxTrustDays
	}
	return s
}

func fingerprintOf(rc client.RequestContext) string {
	return Fingerprint(rc.UserAgent, rc.IPAddress, rc.DeviceID)
}

// Trust remembers the requesting device for ttlDays. Trusting a device the
// user already trusts refreshes it and extends the expiry.
func (s *DeviceService) Trust(ctx context.Context, userID uuid.UUID, rc client.RequestContext, name string, ttlDays int) (TrustedDevice, error) {
	if userID == uuid.Nil {
		return TrustedDevice{}, errors.Validation("userId", "is required")
	}
	if ttlDays <= 0 {
		ttlDays = s.defaultTrustDays
	}
	if ttlDays > s.maxTrustDays {
		return TrustedDevice{}, errors.Validation("ttlDays", "must not exceed the maximum trust period").
			WithDetail("max", s.maxTrustDays)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DeviceName(rc.UserAgent)
	}
	if len(name) > maxDeviceNameLength {
		return TrustedDevice{}, errors.Validation("name", "is too long")
	}

	now := s.clock.Now()
	device := TrustedDevice{
		UserID:      userID,
		Fingerprint: fingerprintOf(rc),
		DeviceName:  name,
		IPAddress:   rc.IPAddress,
		UserAgent:   rc.UserAgent,
		LastUsedAt:  now,
		ExpiresAt:   now.AddDate(0, 0, ttlDays),
		CreatedAt:   now,
	}

	saved, created, err := s.repo.UpsertDevice(ctx, device)
	if stderrors.Is(err, ErrTrustDisabled) {
		return TrustedDevice{}, errors.Forbidden("device trust is disabled")
	}
	if err != nil {
		slog.Error("Failed to trust device", "user_id", userID, "error", err)
		return TrustedDevice{}, errors.Storage(err, "failed to trust device")
	}

	slog.Info("Device trusted", "user_id", userID, "device_id", saved.ID, "created", created, "expires_at", saved.ExpiresAt)
	s.auditRecorder.Record(ctx, &userID, audit.StatusSuccess, rc, audit.DeviceTrustedDetails{
		DeviceID:   saved.ID,
		DeviceName: saved.DeviceName,
		ExpiresAt:  saved.ExpiresAt,
		Refreshed:  !created,
	})
	return saved, nil
}

// IsTrusted reports whether the requesting device is trusted by the user.
// Expired devices count as untrusted. A trusted hit refreshes last use.
func (s *DeviceService) IsTrusted(ctx context.Context, userID uuid.UUID, rc client.RequestContext) (TrustStatus, error) {
	if userID == uuid.Nil {
		return TrustStatus{}, errors.Validation("userId", "is required")
	}

	d, err := s.repo.GetDeviceByFingerprint(ctx, userID, fingerprintOf(rc))
	if stderrors.Is(err, ErrDeviceNotFound) {
		return TrustStatus{Trusted: false}, nil
	}
	if err != nil {
		return TrustStatus{}, errors.Storage(err, "failed to check trusted device")
	}

	now := s.clock.Now()
	if d.IsExpired(now) {
		slog.Debug("Trusted device expired", "user_id", userID, "device_id", d.ID, "expired_at", d.ExpiresAt)
		return TrustStatus{Trusted: false}, nil
	}

	if err := s.repo.TouchDevice(ctx, d.ID, now); err != nil {
		// The device is still trusted, only the last-use stamp is stale
		slog.Warn("Failed to refresh trusted device last use", "device_id", d.ID, "error", err)
	}

	return TrustStatus{
		Trusted:    true,
		DeviceID:   &d.ID,
		DeviceName: d.DeviceName,
		ExpiresAt:  &d.ExpiresAt,
	}, nil
}

// ListDevices returns the user's devices, most recently used first, each
// marked expired or not.
func (s *DeviceService) ListDevices(ctx context.Context, userID uuid.UUID) ([]TrustedDevice, error) {
	devices, err := s.repo.FindDevicesByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err, "failed to list trusted devices")
	}
	now := s.clock.Now()
	for i := range devices {
		devices[i].Expired = devices[i].IsExpired(now)
	}
	return devices, nil
}

// RemoveDevice deletes one device after checking it belongs to userID
func (s *DeviceService) RemoveDevice(ctx context.Context, deviceID, userID uuid.UUID, rc client.RequestContext) error {
	d, err := s.repo.GetDevice(ctx, deviceID)
	if stderrors.Is(err, ErrDeviceNotFound) {
		return errors.NotFound("trusted device", deviceID.String())
	}
	if err != nil {
		return errors.Storage(err, "failed to load trusted device")
	}
	if d.UserID != userID {
		slog.Warn("Attempt to remove another user's device", "user_id", userID, "device_id", deviceID)
		return errors.Forbidden("device belongs to another user")
	}

	err = s.repo.DeleteDevice(ctx, deviceID, userID)
	if stderrors.Is(err, ErrDeviceNotFound) {
		// Removed concurrently
		return errors.NotFound("trusted device", deviceID.String())
	}
	if err != nil {
		return errors.Storage(err, "failed to remove trusted device")
	}

	s.auditRecorder.Record(ctx, &userID, audit.StatusSuccess, rc, audit.DeviceRemovedDetails{
		DeviceID:   d.ID,
		DeviceName: d.DeviceName,
	})
	return nil
}

// RemoveAllDevices deletes every device of userID and returns how many
func (s *DeviceService) RemoveAllDevices(ctx context.Context, userID uuid.UUID, rc client.RequestContext) (int, error) {
	return s.removeAll(ctx, userID, rc, "")
}

// RevokeAll removes every trusted device after a credential reset
func (s *DeviceService) RevokeAll(ctx context.Context, userID uuid.UUID, rc client.RequestContext) (int, error) {
	return s.removeAll(ctx, userID, rc, audit.ReasonCredentialReset)
}

func (s *DeviceService) removeAll(ctx context.Context, userID uuid.UUID, rc client.RequestContext, reason string) (int, error) {
	if userID == uuid.Nil {
		return 0, errors.Validation("userId", "is required")
	}
	count, err := s.repo.DeleteDevicesByUser(ctx, userID)
	if err != nil {
		return 0, errors.Storage(err, "failed to remove trusted devices")
	}

	slog.Info("Trusted devices removed", "user_id", userID, "count", count, "reason", reason)
	s.auditRecorder.Record(ctx, &userID, audit.StatusSuccess, rc, audit.DevicesRemovedAllDetails{
		Count:  count,
		Reason: reason,
	})
	return count, nil
}
