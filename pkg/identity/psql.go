package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresStore reads and updates the users table
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LookupUserByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE lower(email) = $1`, normalizeEmail(email)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ResetCredential(ctx context.Context, userID uuid.UUID, newCredential string) error {
	hashed, err := HashCredential(newCredential)
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}

	tag, err := s.db.Exec(ctx, `UPDATE users SET password = $2, updated_at = now() WHERE id = $1`, userID, hashed)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateUser inserts an account with a hashed credential
func (s *PostgresStore) CreateUser(ctx context.Context, email, credential string) (uuid.UUID, error) {
	hashed, err := HashCredential(credential)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash credential: %w", err)
	}
	id := uuid.New()
	_, err = s.db.Exec(ctx, `INSERT INTO users (id, email, password) VALUES ($1, $2, $3)`, id, normalizeEmail(email), hashed)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// VerifyCredential reports whether credential is the user's current one
func (s *PostgresStore) VerifyCredential(ctx context.Context, userID uuid.UUID, credential string) (bool, error) {
	var hashed string
	err := s.db.QueryRow(ctx, `SELECT password FROM users WHERE id = $1`, userID).Scan(&hashed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to load credential: %w", err)
	}
	return CredentialMatches(hashed, credential), nil
}
