package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresDeviceRepository implements TrustedDeviceRepository using PostgreSQL
type PostgresDeviceRepository struct {
	db DBTX
}

func NewPostgresDeviceRepository(db DBTX) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db}
}

const deviceColumns = `id, user_id, device_fingerprint, device_name, ip_address, user_agent, last_used_at, expires_at, created_at`

func scanDevice(row pgx.Row, extra ...interface{}) (TrustedDevice, error) {
	var d TrustedDevice
	dest := []interface{}{&d.ID, &d.UserID, &d.Fingerprint, &d.DeviceName, &d.IPAddress, &d.UserAgent, &d.LastUsedAt, &d.ExpiresAt, &d.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return TrustedDevice{}, err
	}
	d.LastUsedAt = d.LastUsedAt.UTC()
	d.ExpiresAt = d.ExpiresAt.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func (r *PostgresDeviceRepository) UpsertDevice(ctx context.Context, device TrustedDevice) (TrustedDevice, bool, error) {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	if device.CreatedAt.IsZero() {
		device.CreatedAt = device.LastUsedAt
	}

	// xmax is zero only for a freshly inserted row
	row := r.db.QueryRow(ctx, `
		INSERT INTO trusted_device (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, device_fingerprint) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			ip_address = EXCLUDED.ip_address,
			user_agent = EXCLUDED.user_agent,
			last_used_at = EXCLUDED.last_used_at,
			expires_at = EXCLUDED.expires_at
		RETURNING `+deviceColumns+`, (xmax = 0) AS inserted`,
		device.ID, device.UserID, device.Fingerprint, device.DeviceName, device.IPAddress,
		device.UserAgent, device.LastUsedAt, device.ExpiresAt, device.CreatedAt)

	var inserted bool
	saved, err := scanDevice(row, &inserted)
	if err != nil {
		return TrustedDevice{}, false, fmt.Errorf("failed to upsert trusted device: %w", err)
	}
	return saved, inserted, nil
}

func (r *PostgresDeviceRepository) GetDevice(ctx context.Context, id uuid.UUID) (TrustedDevice, error) {
	d, err := scanDevice(r.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM trusted_device WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return TrustedDevice{}, ErrDeviceNotFound
	}
	if err != nil {
		return TrustedDevice{}, fmt.Errorf("failed to get trusted device: %w", err)
	}
	return d, nil
}

func (r *PostgresDeviceRepository) GetDeviceByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) (TrustedDevice, error) {
	d, err := scanDevice(r.db.QueryRow(ctx, `
		SELECT `+deviceColumns+` FROM trusted_device
		WHERE user_id = $1 AND device_fingerprint = $2`, userID, fingerprint))
	if errors.Is(err, pgx.ErrNoRows) {
		return TrustedDevice{}, ErrDeviceNotFound
	}
	if err != nil {
		return TrustedDevice{}, fmt.Errorf("failed to get trusted device by fingerprint: %w", err)
	}
	return d, nil
}

func (r *PostgresDeviceRepository) TouchDevice(ctx context.Context, id uuid.UUID, lastUsedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE trusted_device SET last_used_at = $2 WHERE id = $1`, id, lastUsedAt)
	if err != nil {
		return fmt.Errorf("failed to update trusted device last use: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *PostgresDeviceRepository) FindDevicesByUser(ctx context.Context, userID uuid.UUID) ([]TrustedDevice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+deviceColumns+` FROM trusted_device
		WHERE user_id = $1
		ORDER BY last_used_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted devices: %w", err)
	}
	defer rows.Close()

	devices := make([]TrustedDevice, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trusted device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trusted devices: %w", err)
	}
	return devices, nil
}

func (r *PostgresDeviceRepository) DeleteDevice(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trusted_device WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete trusted device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *PostgresDeviceRepository) DeleteDevicesByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM trusted_device WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trusted devices: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
