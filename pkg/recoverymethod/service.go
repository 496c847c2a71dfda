package recoverymethod

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-recovery/pkg/audit"
	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/clock"
	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/hasher"
)

// MethodSummary is a method as shown to its owner, with the contact value or
// question texts but never answer hashes.
type MethodSummary struct {
	ID         uuid.UUID
	MethodType MethodType
	IsVerified bool
	IsPrimary  bool
	Contact    string
	Questions  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Challenge is a security question without its answer
type Challenge struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"questionText"`
}

type RecoveryMethodService struct {
	repo          RecoveryMethodRepository
	auditRecorder audit.Recorder
	clock         clock.Clock
}

type Option func(*RecoveryMethodService)

func WithClock(c clock.Clock) Option {
	return func(s *RecoveryMethodService) {
		s.clock = c
	}
}

func WithAuditRecorder(r audit.Recorder) Option {
	return func(s *RecoveryMethodService) {
		if r != nil {
			s.auditRecorder = r
		}
	}
}

func NewRecoveryMethodService(repo RecoveryMethodRepository, opts ...Option) *RecoveryMethodService {
	s := &RecoveryMethodService{
		repo:          repo,
		auditRecorder: audit.NoopRecorder{},
		clock:         clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListMethods returns the user's methods, primary first, then newest first
func (s *RecoveryMethodService) ListMethods(ctx context.Context, userID uuid.UUID) ([]MethodSummary, error) {
	methods, err := s.repo.FindMethodsByUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage(err, "failed to list recovery methods")
	}

	summaries := make([]MethodSummary, 0, len(methods))
	for _, m := range methods {
		summary := MethodSummary{
			ID:         m.ID,
			MethodType: m.MethodType,
			IsVerified: m.IsVerified,
			IsPrimary:  m.IsPrimary,
			CreatedAt:  m.CreatedAt,
			UpdatedAt:  m.UpdatedAt,
		}

		switch m.MethodType {
		case MethodSecurityQuestions:
			questions, err := s.repo.FindQuestions(ctx, m.ID)
			if err != nil {
				return nil, errors.Storage(err, "failed to list security questions")
			}
			summary.Questions = make([]string, 0, len(questions))
			for _, q := range questions {
				summary.Questions = append(summary.Questions, q.QuestionText)
			}
		case MethodRecoveryEmail, MethodRecoveryPhone:
			contact, err := s.repo.GetContact(ctx, m.ID)
			if err != nil && !stderrors.Is(err, ErrContactNotFound) {
				return nil, errors.Storage(err, "failed to load recovery contact")
			}
			summary.Contact = contact.Value
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// AddSecurityQuestions sets the user's security questions, replacing any
// existing set. The method is verified immediately.
func (s *RecoveryMethodService) AddSecurityQuestions(ctx context.Context, userID uuid.UUID, questions []QuestionInput, rc client.RequestContext) (RecoveryMethod, error) {
	if userID == uuid.Nil {
		return RecoveryMethod{}, errors.Validation("userId", "is required")
	}
	cleaned, err := validateQuestions(questions)
	if err != nil {
		return RecoveryMethod{}, err
	}

	stored := make([]SecurityQuestion, len(cleaned))
	for i, q := range cleaned {
		stored[i] = SecurityQuestion{
			QuestionText: q.Question,
			AnswerHash:   hasher.Hash(q.Answer),
			Position:     i,
		}
	}

	return s.addMethod(ctx, userID, MethodSecurityQuestions, true, rc, len(stored), func(repo RecoveryMethodRepository, methodID uuid.UUID) error {
		return repo.ReplaceQuestions(ctx, methodID, stored)
	})
}

// AddRecoveryEmail sets the user's recovery email. It stays unverified until
// delivery is confirmed out of band.
func (s *RecoveryMethodService) AddRecoveryEmail(ctx context.Context, userID uuid.UUID, email string, rc client.RequestContext) (RecoveryMethod, error) {
	if userID == uuid.Nil {
		return RecoveryMethod{}, errors.Validation("userId", "is required")
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return RecoveryMethod{}, err
	}
	return s.addContactMethod(ctx, userID, MethodRecoveryEmail, normalized, rc)
}

// AddRecoveryPhone sets the user's recovery phone number, unverified
func (s *RecoveryMethodService) AddRecoveryPhone(ctx context.Context, userID uuid.UUID, phone string, rc client.RequestContext) (RecoveryMethod, error) {
	if userID == uuid.Nil {
		return RecoveryMethod{}, errors.Validation("userId", "is required")
	}
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return RecoveryMethod{}, err
	}
	return s.addContactMethod(ctx, userID, MethodRecoveryPhone, normalized, rc)
}

func (s *RecoveryMethodService) addContactMethod(ctx context.Context, userID uuid.UUID, methodType MethodType, value string, rc client.RequestContext) (RecoveryMethod, error) {
	return s.addMethod(ctx, userID, methodType, false, rc, 0, func(repo RecoveryMethodRepository, methodID uuid.UUID) error {
		_, err := repo.ReplaceContact(ctx, methodID, value)
		return err
	})
}

func (s *RecoveryMethodService) addMethod(ctx context.Context, userID uuid.UUID, methodType MethodType, verified bool, rc client.RequestContext, questionCount int, writeChildren func(RecoveryMethodRepository, uuid.UUID) error) (RecoveryMethod, error) {
	now := s.clock.Now()

	var (
		saved   RecoveryMethod
		created bool
	)
	err := s.repo.WithinTx(ctx, func(repo RecoveryMethodRepository) error {
		m, c, err := repo.UpsertMethod(ctx, RecoveryMethod{
			UserID:     userID,
			MethodType: methodType,
			IsVerified: verified,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return err
		}
		saved, created = m, c
		return writeChildren(repo, m.ID)
	})
	if err != nil {
		slog.Error("Failed to add recovery method", "user_id", userID, "method_type", methodType, "error", err)
		return RecoveryMethod{}, errors.Storage(err, "failed to save recovery method")
	}

	slog.Info("Recovery method saved", "user_id", userID, "method_id", saved.ID, "method_type", methodType, "replaced", !created)
	s.auditRecorder.Record(ctx, &userID, audit.StatusSuccess, rc, audit.RecoveryMethodAddedDetails{
		RecoveryMethodID: saved.ID,
		MethodType:       string(methodType),
		Replaced:         !created,
		QuestionCount:    questionCount,
	})
	return saved, nil
}

// ownedMethod loads a method and checks it belongs to userID
func (s *RecoveryMethodService) ownedMethod(ctx context.Context, methodID, userID uuid.UUID) (RecoveryMethod, error) {
	m, err := s.repo.GetMethod(ctx, methodID)
	if stderrors.Is(err, ErrMethodNotFound) {
		return RecoveryMethod{}, errors.NotFound("recovery method", methodID.String())
	}
	if err != nil {
		return RecoveryMethod{}, errors.Storage(err, "failed to load recovery method")
	}
	if m.UserID != userID {
		slog.Warn("Recovery method owned by another user", "user_id", userID, "method_id", methodID)
		return RecoveryMethod{}, errors.Forbidden("recovery method belongs to another user")
	}
	return m, nil
}

// DeleteMethod removes one of the user's methods with its questions or contact
func (s *RecoveryMethodService) DeleteMethod(ctx context.Context, methodID, userID uuid.UUID, rc client.RequestContext) error {
	m, err := s.ownedMethod(ctx, methodID, userID)
	if err != nil {
		return err
	}

	err = s.repo.DeleteMethod(ctx, methodID, userID)
	if stderrors.Is(err, ErrMethodNotFound) {
		return errors.NotFound("recovery method", methodID.String())
	}
	if err != nil {
		return errors.Storage(err, "failed to delete recovery method")
	}

	s.auditRecorder.Record(ctx, &userID, audit.StatusSuccess, rc, audit.RecoveryMethodRemovedDetails{
		RecoveryMethodID: m.ID,
		MethodType:       string(m.MethodType),
	})
	return nil
}

// SetPrimary makes the method the user's only primary method
func (s *RecoveryMethodService) SetPrimary(ctx context.Context, methodID, userID uuid.UUID, rc client.RequestContext) error {
	m, err := s.ownedMethod(ctx, methodID, userID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.repo.WithinTx(ctx, func(repo RecoveryMethodRepository) error {
		if err := repo.ClearPrimary(ctx, userID, now); err != nil {
			return err
		}
		return repo.MarkPrimary(ctx, methodID, userID, now)
	})
	if stderrors.Is(err, ErrMethodNotFound) {
		return errors.NotFound("recovery method", methodID.String())
	}
	if err != nil {
		return errors.Storage(err, "failed to set primary recovery method")
	}

	s.auditRecorder.Record(ctx, &userID, audit.StatusSuccess, rc, audit.RecoveryMethodPrimarySetDetails{
		RecoveryMethodID: m.ID,
		MethodType:       string(m.MethodType),
	})
	return nil
}

// SelectForRecovery picks the method a recovery uses: the primary one, else
// the newest. found is false when the user has no methods.
func (s *RecoveryMethodService) SelectForRecovery(ctx context.Context, userID uuid.UUID) (method RecoveryMethod, found bool, err error) {
	methods, err := s.repo.FindMethodsByUser(ctx, userID)
	if err != nil {
		return RecoveryMethod{}, false, errors.Storage(err, "failed to list recovery methods")
	}
	if len(methods) == 0 {
		return RecoveryMethod{}, false, nil
	}
	return methods[0], true, nil
}

func (s *RecoveryMethodService) GetMethod(ctx context.Context, methodID uuid.UUID) (RecoveryMethod, error) {
	m, err := s.repo.GetMethod(ctx, methodID)
	if stderrors.Is(err, ErrMethodNotFound) {
		return RecoveryMethod{}, errors.NotFound("recovery method", methodID.String())
	}
	if err != nil {
		return RecoveryMethod{}, errors.Storage(err, "failed to load recovery method")
	}
	return m, nil
}

// GetQuestions returns the stored questions including answer hashes, for
// verification only.
func (s *RecoveryMethodService) GetQuestions(ctx context.Context, methodID uuid.UUID) ([]SecurityQuestion, error) {
	m, err := s.GetMethod(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if m.MethodType != MethodSecurityQuestions {
		return nil, errors.Validation("recoveryMethodId", "is not a security questions method")
	}
	questions, err := s.repo.FindQuestions(ctx, methodID)
	if err != nil {
		return nil, errors.Storage(err, "failed to load security questions")
	}
	return questions, nil
}

// GetChallengeQuestions returns the questions of a security questions method
// without their answers.
func (s *RecoveryMethodService) GetChallengeQuestions(ctx context.Context, methodID uuid.UUID) ([]Challenge, error) {
	questions, err := s.GetQuestions(ctx, methodID)
	if err != nil {
		return nil, err
	}
	challenges := make([]Challenge, 0, len(questions))
	for _, q := range questions {
		challenges = append(challenges, Challenge{ID: q.ID, QuestionText: q.QuestionText})
	}
	return challenges, nil
}

// GetContact returns the email address or phone number of a contact method
func (s *RecoveryMethodService) GetContact(ctx context.Context, methodID uuid.UUID) (string, error) {
	c, err := s.repo.GetContact(ctx, methodID)
	if stderrors.Is(err, ErrContactNotFound) {
		return "", errors.NotFound("recovery contact", methodID.String())
	}
	if err != nil {
		return "", errors.Storage(err, "failed to load recovery contact")
	}
	return c.Value, nil
}
