package recoverymethod

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type MethodType string

const (
	MethodSecurityQuestions MethodType = "security_questions"
	MethodRecoveryEmail     MethodType = "recovery_email"
	MethodRecoveryPhone     MethodType = "recovery_phone"
)

func (t MethodType) IsValid() bool {
	switch t {
	case MethodSecurityQuestions, MethodRecoveryEmail, MethodRecoveryPhone:
		return true
	}
	return false
}

var (
	ErrMethodNotFound  = errors.New("recovery method not found")
	ErrContactNotFound = errors.New("recovery contact not found")
)

type RecoveryMethod struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	MethodType MethodType
	IsVerified bool
	IsPrimary  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type SecurityQuestion struct {
	ID               uuid.UUID
	RecoveryMethodID uuid.UUID
	QuestionText     string
	AnswerHash       string
	Position         int
}

type RecoveryContact struct {
	ID               uuid.UUID
	RecoveryMethodID uuid.UUID
	Value            string
}

// RecoveryMethodRepository stores methods and their questions or contact
// values.
type RecoveryMethodRepository interface {
	// WithinTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repo RecoveryMethodRepository) error) error

	GetMethod(ctx context.Context, id uuid.UUID) (RecoveryMethod, error)
	// FindMethodsByUser orders by primary first, then newest first
	FindMethodsByUser(ctx context.Context, userID uuid.UUID) ([]RecoveryMethod, error)
	// UpsertMethod creates the user's method of that type or refreshes the
	// existing one. The boolean is true when a new row was created.
	UpsertMethod(ctx context.Context, method RecoveryMethod) (RecoveryMethod, bool, error)
	DeleteMethod(ctx context.Context, id uuid.UUID, userID uuid.UUID) error

	ClearPrimary(ctx context.Context, userID uuid.UUID, updatedAt time.Time) error
	MarkPrimary(ctx context.Context, id uuid.UUID, userID uuid.UUID, updatedAt time.Time) error

	// ReplaceQuestions deletes the method's questions and inserts the new set
	ReplaceQuestions(ctx context.Context, methodID uuid.UUID, questions []SecurityQuestion) error
	FindQuestions(ctx context.Context, methodID uuid.UUID) ([]SecurityQuestion, error)
	// ReplaceContact deletes the method's contact and inserts value
	ReplaceContact(ctx context.Context, methodID uuid.UUID, value string) (RecoveryContact, error)
	GetContact(ctx context.Context, methodID uuid.UUID) (RecoveryContact, error)
}
