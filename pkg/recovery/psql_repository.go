package recovery

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

type PostgresRecoveryRequestRepository struct {
	db DBTX
}

func NewPostgresRecoveryRequestRepository(db DBTX) *PostgresRecoveryRequestRepository {
	return &PostgresRecoveryRequestRepository{db: db}
}

const requestColumns = `id, user_id, recovery_method_id, token_hash, status, verification_attempts, max_attempts,
	expires_at, completed_at, credential_reset_at, ip_address, user_agent, created_at, updated_at`

func scanRequest(row pgx.Row) (RecoveryRequest, error) {
	var (
		req    RecoveryRequest
		status string
	)
	err := row.Scan(&req.ID, &req.UserID, &req.RecoveryMethodID, &req.TokenHash, &status,
		&req.VerificationAttempts, &req.MaxAttempts, &req.ExpiresAt, &req.CompletedAt,
		&req.CredentialResetAt, &req.IPAddress, &req.UserAgent, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return RecoveryRequest{}, err
	}
	req.Status = Status(status)
	req.ExpiresAt = req.ExpiresAt.UTC()
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	if req.CompletedAt != nil {
		t := req.CompletedAt.UTC()
		req.CompletedAt = &t
	}
	if req.CredentialResetAt != nil {
		t := req.CredentialResetAt.UTC()
		req.CredentialResetAt = &t
	}
	return req, nil
}

func (r *PostgresRecoveryRequestRepository) Create(ctx context.Context, req RecoveryRequest) (RecoveryRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}

	created, err := scanRequest(r.db.QueryRow(ctx, `
		INSERT INTO recovery_request (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+requestColumns,
		req.ID, req.UserID, req.RecoveryMethodID, req.TokenHash, string(req.Status),
		req.VerificationAttempts, req.MaxAttempts, req.ExpiresAt, req.CompletedAt,
		req.CredentialResetAt, req.IPAddress, req.UserAgent, req.CreatedAt, req.UpdatedAt))
	if err != nil {
		return RecoveryRequest{}, fmt.Errorf("failed to create recovery request: %w", err)
	}
	return created, nil
}

func (r *PostgresRecoveryRequestRepository) GetByTokenHash(ctx context.Context, tokenHash string) (RecoveryRequest, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM recovery_request WHERE token_hash = $1`, tokenHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return RecoveryRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return RecoveryRequest{}, fmt.Errorf("failed to get recovery request: %w", err)
	}
	return req, nil
}

func (r *PostgresRecoveryRequestRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]RecoveryRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+` FROM recovery_request
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recovery requests: %w", err)
	}
	defer rows.Close()

	result := make([]RecoveryRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recovery request: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recovery requests: %w", err)
	}
	return result, nil
}

// conditional runs an UPDATE ... RETURNING and tells a missing row apart from
// a row in the wrong state.
func (r *PostgresRecoveryRequestRepository) conditional(ctx context.Context, id uuid.UUID, query string, args ...interface{}) (RecoveryRequest, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, query, args...))
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return RecoveryRequest{}, fmt.Errorf("failed to update recovery request: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM recovery_request WHERE id = $1)`, id).Scan(&exists); err != nil {
		return RecoveryRequest{}, fmt.Errorf("failed to check recovery request: %w", err)
	}
	if !exists {
		return RecoveryRequest{}, ErrRequestNotFound
	}
	return RecoveryRequest{}, ErrStatusConflict
}

func (r *PostgresRecoveryRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (RecoveryRequest, error) {
	return r.conditional(ctx, id, `
		UPDATE recovery_request
		SET status = $3,
			updated_at = $4,
			completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END
		WHERE id = $1 AND status = $2
		RETURNING `+requestColumns, id, string(from), string(to), at)
}

func (r *PostgresRecoveryRequestRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, at time.Time) (RecoveryRequest, error) {
	return r.conditional(ctx, id, `
		UPDATE recovery_request
		SET verification_attempts = verification_attempts + 1, updated_at = $2
		WHERE id = $1 AND status = 'verified' AND verification_attempts < max_attempts
		RETURNING `+requestColumns, id, at)
}

func (r *PostgresRecoveryRequestRepository) ClaimCredentialReset(ctx context.Context, id uuid.UUID, at time.Time) (RecoveryRequest, error) {
	return r.conditional(ctx, id, `
		UPDATE recovery_request
		SET credential_reset_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'completed' AND credential_reset_at IS NULL
		RETURNING `+requestColumns, id, at)
}

func (r *PostgresRecoveryRequestRepository) ReleaseCredentialReset(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conditional(ctx, id, `
		UPDATE recovery_request
		SET credential_reset_at = NULL, updated_at = $2
		WHERE id = $1 AND credential_reset_at IS NOT NULL
		RETURNING `+requestColumns, id, at)
	return err
}
