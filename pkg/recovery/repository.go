package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the state of a recovery request
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusCancelled
}

var (
	ErrRequestNotFound = errors.New("recovery request not found")
	// ErrStatusConflict means the row was not in the state the update required
	ErrStatusConflict = errors.New("recovery request state changed")
)

// RecoveryRequest is one time-boxed attempt to recover an account. Only the
// hash of its token is stored.
type RecoveryRequest struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	RecoveryMethodID     uuid.UUID
	TokenHash            string
	Status               Status
	VerificationAttempts int
	MaxAttempts          int
	ExpiresAt            time.Time
	CompletedAt          *time.Time
	CredentialResetAt    *time.Time
	IPAddress            string
	UserAgent            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsExpired reports whether now is past the request's expiry
func (r RecoveryRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AttemptsRemaining is never negative
func (r RecoveryRequest) AttemptsRemaining() int {
	return max(r.MaxAttempts-r.VerificationAttempts, 0)
}

// RecoveryRequestRepository persists recovery requests. Every mutation is
// conditional on the current state and returns ErrStatusConflict when the
// condition does not hold.
type RecoveryRequestRepository interface {
	Create(ctx context.Context, req RecoveryRequest) (RecoveryRequest, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (RecoveryRequest, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]RecoveryRequest, error)

	// UpdateStatus moves the request from one status to another. Moving to
	// completed also stamps CompletedAt.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (RecoveryRequest, error)

	// IncrementAttempts counts one verification attempt while the request is
	// verified and below its attempt cap.
	IncrementAttempts(ctx context.Context, id uuid.UUID, at time.Time) (RecoveryRequest, error)

	// ClaimCredentialReset stamps CredentialResetAt on a completed request
	// that has not been used yet.
	ClaimCredentialReset(ctx context.Context, id uuid.UUID, at time.Time) (RecoveryRequest, error)
	ReleaseCredentialReset(ctx context.Context, id uuid.UUID, at time.Time) error
}
