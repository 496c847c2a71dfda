package device

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type userFingerprint struct {
	userID      uuid.UUID
	fingerprint string
}

// InMemDeviceRepository implements TrustedDeviceRepository using in-memory maps
type InMemDeviceRepository struct {
	mu            sync.Mutex
	devices       map[uuid.UUID]TrustedDevice
	byFingerprint map[userFingerprint]uuid.UUID
}

func NewInMemDeviceRepository() *InMemDeviceRepository {
	return &InMemDeviceRepository{
		devices:       make(map[uuid.UUID]TrustedDevice),
		byFingerprint: make(map[userFingerprint]uuid.UUID),
	}
}

func (r *InMemDeviceRepository) UpsertDevice(ctx context.Context, device TrustedDevice) (TrustedDevice, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := userFingerprint{device.UserID, device.Fingerprint}
	if id, ok := r.byFingerprint[key]; ok {
		existing := r.devices[id]
		existing.DeviceName = device.DeviceName
		existing.IPAddress = device.IPAddress
		existing.UserAgent = device.UserAgent
		existing.LastUsedAt = device.LastUsedAt
		existing.ExpiresAt = device.ExpiresAt
		r.devices[id] = existing
		return existing, false, nil
	}

	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = device.LastUsedAt
	}
	r.devices[device.ID] = device
	r.byFingerprint[key] = device.ID
	return device, true, nil
}

func (r *InMemDeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return TrustedDevice{}, ErrDeviceNotFound
	}
	return device, nil
}

func (r *InMemDeviceRepository) GetDeviceByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byFingerprint[userFingerprint{userID, fingerprint}]
	if !ok {
		return TrustedDevice{}, ErrDeviceNotFound
	}
	return r.devices[id], nil
}

func (r *InMemDeviceRepository) TouchDevice(ctx context.Context, id uuid.UUID, lastUsedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}
	device.LastUsedAt = lastUsedAt
	r.devices[id] = device
	return nil
}

func (r *InMemDeviceRepository) FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]TrustedDevice, 0)
	for _, d := range r.devices {
		if d.UserID == userID {
			devices = append(devices, d)
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].LastUsedAt.After(devices[j].LastUsedAt)
	})
	return devices, nil
}

func (r *InMemDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[id]
	if !ok || device.UserID != userID {
		return ErrDeviceNotFound
	}
	delete(r.devices, id)
	delete(r.byFingerprint, userFingerprint{device.UserID, device.Fingerprint})
	return nil
}

func (r *InMemDeviceRepository) DeleteDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, d := range r.devices {
		if d.UserID == userID {
			delete(r.devices, id)
			delete(r.byFingerprint, userFingerprint{d.UserID, d.Fingerprint})
			count++
		}
	}
	return count, nil
}
