package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoOpDeviceRepository remembers nothing: every device is untrusted and
// trusting one is refused. Used when device trust is disabled.
type NoOpDeviceRepository struct{}

func NewNoOpDeviceRepository() TrustedDeviceRepository {
	return &NoOpDeviceRepository{}
}

func (r *NoOpDeviceRepository) UpsertDevice(ctx context.Context, device TrustedDevice) (TrustedDevice, bool, error) {
	return TrustedDevice{}, false, ErrTrustDisabled
}

func (r *NoOpDeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (TrustedDevice, error) {
	return TrustedDevice{}, ErrDeviceNotFound
}

func (r *NoOpDeviceRepository) GetDeviceByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (TrustedDevice, error) {
	return TrustedDevice{}, ErrDeviceNotFound
}

func (r *NoOpDeviceRepository) TouchDevice(ctx context.Context, id uuid.UUID, lastUsedAt time.Time) error {
	return ErrDeviceNotFound
}

func (r *NoOpDeviceRepository) FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]TrustedDevice, error) {
	return []TrustedDevice{}, nil
}

func (r *NoOpDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	return ErrDeviceNotFound
}

func (r *NoOpDeviceRepository) DeleteDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}
