package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDeviceNotFound = errors.New("trusted device not found")
	ErrTrustDisabled  = errors.New("device trust is disabled")
)

type TrustedDevice struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Fingerprint string
	DeviceName  string
	IPAddress   string
	UserAgent   string
	LastUsedAt  time.Time
	ExpiresAt   time.Time
	CreatedAt   time.Time
	// Expired is computed on read and never stored
	Expired bool
}

// IsExpired reports whether trust has lapsed at now
func (d TrustedDevice) IsExpired(now time.Time) bool {
	return !d.ExpiresAt.After(now)
}

// TrustedDeviceRepository stores trusted devices, unique per user and
// fingerprint.
type TrustedDeviceRepository interface {
	// UpsertDevice inserts the device or, when the user already trusts the
	// fingerprint, refreshes name, IP, user agent, last use and expiry. The
	// boolean is true when a new row was created.
	UpsertDevice(ctx context.Context, device TrustedDevice) (TrustedDevice, bool, error)
	GetDevice(ctx context.Context, id uuid.UUID) (TrustedDevice, error)
	GetDeviceByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (TrustedDevice, error)
	TouchDevice(ctx context.Context, id uuid.UUID, lastUsedAt time.Time) error
	FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]TrustedDevice, error)
	// DeleteDevice removes the device only if it belongs to userID
	DeleteDevice(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	DeleteDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error)
}

const (
	DefaultTrustDays = 30
	MaxTrustDays     = 365
)
