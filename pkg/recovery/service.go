package recovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-recovery/pkg/audit"
	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/clock"
	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/hasher"
	"github.com/tendant/simple-recovery/pkg/identity"
	"github.com/tendant/simple-recovery/pkg/notification"
	"github.com/tendant/simple-recovery/pkg/ratelimit"
	"github.com/tendant/simple-recovery/pkg/recoverymethod"
)

// GenericMessage is returned by Initiate whatever the outcome
const GenericMessage = "If an account exists, instructions have been sent"

const (
	DefaultTokenExpiry         = 24 * time.Hour
	DefaultMaxAttempts         = 3
	DefaultMinCredentialLength = 8
)

// MethodStore is the part of the recovery method registry a session reads
type MethodStore interface {
	SelectForRecovery(ctx context.Context, userID uuid.UUID) (recoverymethod.RecoveryMethod, bool, error)
	GetMethod(ctx context.Context, methodID uuid.UUID) (recoverymethod.RecoveryMethod, error)
	GetQuestions(ctx context.Context, methodID uuid.UUID) ([]recoverymethod.SecurityQuestion, error)
	GetChallengeQuestions(ctx context.Context, methodID uuid.UUID) ([]recoverymethod.Challenge, error)
	GetContact(ctx context.Context, methodID uuid.UUID) (string, error)
}

// Notifier delivers the recovery link
type Notifier interface {
	Send(ctx context.Context, noticeType notification.NoticeType, system notification.NotificationSystem, data notification.NotificationData) error
}

// DeviceRevoker forgets a user's trusted devices after a credential reset
type DeviceRevoker interface {
	RevokeAll(ctx context.Context, userID uuid.UUID, rc client.RequestContext) (int, error)
}

// Answer is a submitted answer to one security question
type Answer struct {
	QuestionID uuid.UUID `json:"questionId"`
	Answer     string    `json:"answer"`
}

type InitiateResult struct {
	Message string
	Token   string // only set when debug tokens are enabled
}

type VerifyTokenResult struct {
	UserID           uuid.UUID
	RecoveryMethodID uuid.UUID
	MethodType       recoverymethod.MethodType
}

type VerifyAnswersResult struct {
	Completed         bool
	AttemptsRemaining int
}

type RecoveryService struct {
	repo     RecoveryRequestRepository
	methods  MethodStore
	identity identity.Store

	notifier      Notifier
	limiter       ratelimit.Limiter
	deviceRevoker DeviceRevoker
	auditRecorder audit.Recorder
	clock         clock.Clock

	tokenExpiry         time.Duration
	maxAttempts         int
	minCredentialLength int
	debugTokens         bool
	baseURL             string

	deliveries sync.WaitGroup
}

type Option func(*RecoveryService)

func WithClock(c clock.Clock) Option {
	return func(s *RecoveryService) {
		s.clock = c
	}
}

func WithTokenExpiry(d time.Duration) Option {
	return func(s *RecoveryService) {
		if d > 0 {
			s.tokenExpiry = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *RecoveryService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithMinCredentialLength(n int) Option {
	return func(s *RecoveryService) {
		if n > 0 {
			s.minCredentialLength = n
		}
	}
}

// WithDebugTokens returns the raw token from Initiate. Never enable in production.
func WithDebugTokens(enabled bool) Option {
	return func(s *RecoveryService) {
		s.debugTokens = enabled
	}
}

// WithNotifier sends recovery links to baseURL?token=...
func WithNotifier(n Notifier, baseURL string) Option {
	return func(s *RecoveryService) {
		s.notifier = n
		s.baseURL = baseURL
	}
}

func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *RecoveryService) {
		if l != nil {
			s.limiter = l
		}
	}
}

func WithDeviceRevoker(r DeviceRevoker) Option {
	return func(s *RecoveryService) {
		s.deviceRevoker = r
	}
}

func WithAuditRecorder(r audit.Recorder) Option {
	return func(s *RecoveryService) {
		if r != nil {
			s.auditRecorder = r
		}
	}
}

func NewRecoveryService(repo RecoveryRequestRepository, methods MethodStore, identityStore identity.Store, opts ...Option) *RecoveryService {
	s := &RecoveryService{
		repo:                repo,
		methods:             methods,
		identity:            identityStore,
		limiter:             ratelimit.NoopLimiter{},
		auditRecorder:       audit.NoopRecorder{},
		clock:               clock.New(),
		tokenExpiry:         DefaultTokenExpiry,
		maxAttempts:         DefaultMaxAttempts,
		minCredentialLength: DefaultMinCredentialLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate starts a recovery session for email. The result message is the
// same whether or not anything was started.
func (s *RecoveryService) Initiate(ctx context.Context, email string, rc client.RequestContext) (InitiateResult, error) {
	normalized, err := recoverymethod.NormalizeEmail(email)
	if err != nil {
		return InitiateResult{}, err
	}
	generic := InitiateResult{Message: GenericMessage}

	allowed, err := s.limiter.Allow(ctx, "recovery:initiate:"+normalized)
	if err != nil {
		// Fail open so a limiter outage does not block recovery
		slog.Warn("Recovery rate limiter unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		slog.Info("Recovery initiation throttled")
		s.auditRecorder.Record(ctx, nil, audit.StatusFailure, rc, audit.RecoveryInitiatedDetails{
			Email:  normalized,
			Reason: audit.ReasonRateLimited,
		})
		return generic, nil
	}

	userID, err := s.identity.LookupUserByEmail(ctx, normalized)
	if stderrors.Is(err, identity.ErrUserNotFound) {
		s.auditRecorder.Record(ctx, nil, audit.StatusFailure, rc, audit.RecoveryInitiatedDetails{
			Email:  normalized,
			Reason: audit.ReasonUnknownAccount,
		})
		return generic, nil
	}
	if err != nil {
		return InitiateResult{}, errors.Storage(err, "failed to look up account")
	}

	method, found, err := s.methods.SelectForRecovery(ctx, userID)
	if err != nil {
		return InitiateResult{}, err
	}
	if !found {
		s.auditRecorder.Record(ctx, &userID, audit.StatusFailure, rc, audit.RecoveryInitiatedDetails{
			Email:  normalized,
			Reason: audit.ReasonNoMethods,
		})
		return generic, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return InitiateResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate recovery token")
	}

	now := s.clock.Now()
	req, err := s.repo.Create(ctx, RecoveryRequest{
		UserID:           userID,
		RecoveryMethodID: method.ID,
		TokenHash:        HashToken(token),
		Status:           StatusPending,
		MaxAttempts:      s.maxAttempts,
		ExpiresAt:        now.Add(s.tokenExpiry),
		IPAddress:        rc.IPAddress,
		UserAgent:        rc.UserAgent,
		CreatedAt:        now,
	})
	if err != nil {
		return InitiateResult{}, errors.Storage(err, "failed to create recovery request")
	}

	slog.Info("Recovery initiated", "user_id", userID, "request_id", req.ID, "method_type", method.MethodType)
	s.auditRecorder.Record(ctx, &userID, audit.StatusSuccess, rc, audit.RecoveryInitiatedDetails{
		Email:            normalized,
		RequestID:        &req.ID,
		RecoveryMethodID: &method.ID,
		MethodType:       string(method.MethodType),
	})

	s.deliver(ctx, method, normalized, token)

	if s.debugTokens {
		generic.Token = token
	}
	return generic, nil
}

// deliver sends the link in the background; failures are only logged
func (s *RecoveryService) deliver(ctx context.Context, method recoverymethod.RecoveryMethod, accountEmail, token string) {
	if s.notifier == nil {
		slog.Debug("No notifier configured, recovery link not sent", "method_id", method.ID)
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()

		system := notification.EmailSystem
		to := accountEmail
		switch method.MethodType {
		case recoverymethod.MethodRecoveryEmail, recoverymethod.MethodRecoveryPhone:
			contact, err := s.methods.GetContact(ctx, method.ID)
			if err != nil {
				slog.Error("Failed to load recovery contact", "method_id", method.ID, "error", err)
				return
			}
			to = contact
			if method.MethodType == recoverymethod.MethodRecoveryPhone {
				system = notification.SMSSystem
			}
		}

		link, err := recoveryLink(s.baseURL, token)
		if err != nil {
			slog.Error("Failed to build recovery link", "error", err)
			return
		}
		err = s.notifier.Send(ctx, notification.RecoveryLinkNotice, system, notification.NotificationData{
			To: to,
			Data: map[string]string{
				"Link":      link,
				"ExpiresIn": formatExpiry(s.tokenExpiry),
			},
		})
		if err != nil {
			slog.Error("Failed to deliver recovery link", "method_id", method.ID, "system", system, "error", err)
			return
		}
		slog.Info("Recovery link delivered", "method_id", method.ID, "system", system)
	}()
}

// Wait blocks until in-flight deliveries finish
func (s *RecoveryService) Wait() {
	s.deliveries.Wait()
}

func recoveryLink(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatExpiry(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}

func (s *RecoveryService) lookup(ctx context.Context, token string) (RecoveryRequest, error) {
	if token == "" {
		return RecoveryRequest{}, errors.Validation("token", "is required")
	}
	req, err := s.repo.GetByTokenHash(ctx, HashToken(token))
	if stderrors.Is(err, ErrRequestNotFound) {
		return RecoveryRequest{}, errors.New(errors.ErrCodeInvalidToken, "invalid recovery token")
	}
	if err != nil {
		return RecoveryRequest{}, errors.Storage(err, "failed to load recovery request")
	}
	return req, nil
}

// VerifyToken confirms possession of the token and moves the request from
// pending to verified. An expired token moves it to expired instead.
func (s *RecoveryService) VerifyToken(ctx context.Context, token string, rc client.RequestContext) (VerifyTokenResult, error) {
	req, err := s.lookup(ctx, token)
	if err != nil {
		return VerifyTokenResult{}, err
	}
	if req.Status != StatusPending {
		return VerifyTokenResult{}, errors.New(errors.ErrCodeInvalidToken, "invalid recovery token")
	}

	now := s.clock.Now()
	if req.IsExpired(now) {
		if _, err := s.repo.UpdateStatus(ctx, req.ID, StatusPending, StatusExpired, now); err != nil && !stderrors.Is(err, ErrStatusConflict) {
			return VerifyTokenResult{}, errors.Storage(err, "failed to expire recovery request")
		}
		s.auditRecorder.Record(ctx, &req.UserID, audit.StatusFailure, rc, audit.RecoveryTokenVerifiedDetails{
			RequestID:        req.ID,
			RecoveryMethodID: req.RecoveryMethodID,
			Reason:           audit.ReasonTokenExpired,
		})
		return VerifyTokenResult{}, errors.New(errors.ErrCodeTokenExpired, "recovery token has expired")
	}

	method, err := s.methods.GetMethod(ctx, req.RecoveryMethodID)
	if errors.IsCode(err, errors.ErrCodeNotFound) {
		return VerifyTokenResult{}, errors.New(errors.ErrCodeInvalidSession, "recovery method no longer exists")
	}
	if err != nil {
		return VerifyTokenResult{}, err
	}

	if _, err := s.repo.UpdateStatus(ctx, req.ID, StatusPending, StatusVerified, now); err != nil {
		if stderrors.Is(err, ErrStatusConflict) {
			return VerifyTokenResult{}, errors.New(errors.ErrCodeInvalidToken, "invalid recovery token")
		}
		return VerifyTokenResult{}, errors.Storage(err, "failed to verify recovery request")
	}

	slog.Info("Recovery token verified", "user_id", req.UserID, "request_id", req.ID)
	s.auditRecorder.Record(ctx, &req.UserID, audit.StatusSuccess, rc, audit.RecoveryTokenVerifiedDetails{
		RequestID:        req.ID,
		RecoveryMethodID: req.RecoveryMethodID,
		MethodType:       string(method.MethodType),
	})

	return VerifyTokenResult{
		UserID:           req.UserID,
		RecoveryMethodID: req.RecoveryMethodID,
		MethodType:       method.MethodType,
	}, nil
}

// GetChallengeQuestions returns the questions of a security questions method
// without their answers.
func (s *RecoveryService) GetChallengeQuestions(ctx context.Context, methodID uuid.UUID) ([]recoverymethod.Challenge, error) {
	return s.methods.GetChallengeQuestions(ctx, methodID)
}

// GetChallengeQuestionsForToken returns the questions for a verified request
func (s *RecoveryService) GetChallengeQuestionsForToken(ctx context.Context, token string) ([]recoverymethod.Challenge, error) {
	req, err := s.verifiedRequest(ctx, token)
	if err != nil {
		return nil, err
	}
	if now := s.clock.Now(); req.IsExpired(now) {
		s.cancel(ctx, req, now)
		return nil, errors.New(errors.ErrCodeTokenExpired, "recovery token has expired")
	}

	challenges, err := s.methods.GetChallengeQuestions(ctx, req.RecoveryMethodID)
	if errors.IsCode(err, errors.ErrCodeValidation) || errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, errors.New(errors.ErrCodeInvalidSession, "recovery request does not use security questions")
	}
	return challenges, err
}

func (s *RecoveryService) verifiedRequest(ctx context.Context, token string) (RecoveryRequest, error) {
	req, err := s.lookup(ctx, token)
	if err != nil {
		return RecoveryRequest{}, err
	}
	if req.Status.IsTerminal() {
		return RecoveryRequest{}, errors.Newf(errors.ErrCodeInvalidSession, "recovery request is already %s", req.Status)
	}
	if req.Status != StatusVerified {
		return RecoveryRequest{}, errors.New(errors.ErrCodeInvalidSession, "recovery token has not been verified")
	}
	return req, nil
}

// VerifyAnswers checks the answers to the method's security questions. Each
// call counts one attempt before the answers are compared. The attempt that
// reaches the cap without a match cancels the request.
func (s *RecoveryService) VerifyAnswers(ctx context.Context, token string, answers []Answer, rc client.RequestContext) (VerifyAnswersResult, error) {
	if len(answers) == 0 {
		return VerifyAnswersResult{}, errors.Validation("answers", "at least one answer is required")
	}
	req, err := s.verifiedRequest(ctx, token)
	if err != nil {
		return VerifyAnswersResult{}, err
	}

	now := s.clock.Now()
	if req.IsExpired(now) {
		s.cancel(ctx, req, now)
		s.recordAnswers(ctx, req, audit.StatusFailure, rc, audit.ReasonTokenExpired)
		return VerifyAnswersResult{}, errors.New(errors.ErrCodeTokenExpired, "recovery token has expired")
	}
	if req.VerificationAttempts >= req.MaxAttempts {
		return VerifyAnswersResult{}, s.tooManyAttempts(ctx, req, rc, now)
	}

	questions, err := s.methods.GetQuestions(ctx, req.RecoveryMethodID)
	if errors.IsCode(err, errors.ErrCodeValidation) || errors.IsCode(err, errors.ErrCodeNotFound) {
		return VerifyAnswersResult{}, errors.New(errors.ErrCodeInvalidSession, "recovery request does not use security questions")
	}
	if err != nil {
		return VerifyAnswersResult{}, err
	}

	// The attempt is counted before the answers are looked at
	req, err = s.repo.IncrementAttempts(ctx, req.ID, now)
	if stderrors.Is(err, ErrStatusConflict) {
		current, lookupErr := s.lookup(ctx, token)
		if lookupErr != nil {
			return VerifyAnswersResult{}, lookupErr
		}
		if current.VerificationAttempts >= current.MaxAttempts {
			return VerifyAnswersResult{}, s.tooManyAttempts(ctx, current, rc, now)
		}
		return VerifyAnswersResult{}, errors.New(errors.ErrCodeInvalidSession, "recovery request is not awaiting verification")
	}
	if err != nil {
		return VerifyAnswersResult{}, errors.Storage(err, "failed to record verification attempt")
	}

	if !answersMatch(questions, answers) {
		if req.AttemptsRemaining() == 0 {
			return VerifyAnswersResult{}, s.tooManyAttempts(ctx, req, rc, now)
		}
		slog.Info("Security answers rejected", "request_id", req.ID, "attempts", req.VerificationAttempts)
		s.recordAnswers(ctx, req, audit.StatusFailure, rc, audit.ReasonIncorrectAnswers)
		return VerifyAnswersResult{Completed: false, AttemptsRemaining: req.AttemptsRemaining()}, nil
	}

	completed, err := s.repo.UpdateStatus(ctx, req.ID, StatusVerified, StatusCompleted, now)
	if stderrors.Is(err, ErrStatusConflict) {
		return VerifyAnswersResult{}, errors.New(errors.ErrCodeInvalidSession, "recovery request is not awaiting verification")
	}
	if err != nil {
		return VerifyAnswersResult{}, errors.Storage(err, "failed to complete recovery request")
	}

	slog.Info("Security answers accepted", "user_id", req.UserID, "request_id", req.ID)
	s.recordAnswers(ctx, completed, audit.StatusSuccess, rc, "")
	return VerifyAnswersResult{Completed: true, AttemptsRemaining: completed.AttemptsRemaining()}, nil
}

// answersMatch requires one answer per stored question and stops at the
// first mismatch.
func answersMatch(questions []recoverymethod.SecurityQuestion, answers []Answer) bool {
	if len(questions) == 0 || len(answers) != len(questions) {
		return false
	}
	submitted := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		if _, dup := submitted[a.QuestionID]; dup {
			return false
		}
		submitted[a.QuestionID] = a.Answer
	}
	for _, q := range questions {
		answer, ok := submitted[q.ID]
		if !ok || !hasher.Matches(answer, q.AnswerHash) {
			return false
		}
	}
	return true
}

func (s *RecoveryService) cancel(ctx context.Context, req RecoveryRequest, now time.Time) {
	_, err := s.repo.UpdateStatus(ctx, req.ID, StatusVerified, StatusCancelled, now)
	if err != nil && !stderrors.Is(err, ErrStatusConflict) {
		slog.Error("Failed to cancel recovery request", "request_id", req.ID, "error", err)
	}
}

func (s *RecoveryService) tooManyAttempts(ctx context.Context, req RecoveryRequest, rc client.RequestContext, now time.Time) error {
	s.cancel(ctx, req, now)
	slog.Warn("Recovery request cancelled after too many attempts", "user_id", req.UserID, "request_id", req.ID)
	s.recordAnswers(ctx, req, audit.StatusFailure, rc, audit.ReasonTooManyAttempts)
	return errors.New(errors.ErrCodeTooManyAttempts, "too many attempts, start recovery again")
}

func (s *RecoveryService) recordAnswers(ctx context.Context, req RecoveryRequest, status audit.Status, rc client.RequestContext, reason string) {
	s.auditRecorder.Record(ctx, &req.UserID, status, rc, audit.RecoveryAnswersVerifiedDetails{
		RequestID:         req.ID,
		Attempts:          req.VerificationAttempts,
		AttemptsRemaining: req.AttemptsRemaining(),
		Reason:            reason,
	})
}

// ResetCredential sets a new primary credential through the identity store.
// A completed request can be used for one successful reset only.
func (s *RecoveryService) ResetCredential(ctx context.Context, token, newCredential string, rc client.RequestContext) error {
	if len(newCredential) < s.minCredentialLength {
		return errors.Validation("newCredential", fmt.Sprintf("must be at least %d characters", s.minCredentialLength))
	}
	req, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}
	if req.Status != StatusCompleted || req.CredentialResetAt != nil {
		return errors.New(errors.ErrCodeInvalidSession, "recovery request is not ready for a credential reset")
	}

	now := s.clock.Now()
	if req.IsExpired(now) {
		s.auditRecorder.Record(ctx, &req.UserID, audit.StatusFailure, rc, audit.PasswordResetFailureDetails{
			RequestID: req.ID,
			Reason:    audit.ReasonTokenExpired,
		})
		return errors.New(errors.ErrCodeTokenExpired, "recovery token has expired")
	}

	if _, err := s.repo.ClaimCredentialReset(ctx, req.ID, now); err != nil {
		if stderrors.Is(err, ErrStatusConflict) {
			return errors.New(errors.ErrCodeInvalidSession, "recovery request is not ready for a credential reset")
		}
		return errors.Storage(err, "failed to claim recovery request")
	}

	if err := s.identity.ResetCredential(ctx, req.UserID, newCredential); err != nil {
		if releaseErr := s.repo.ReleaseCredentialReset(ctx, req.ID, s.clock.Now()); releaseErr != nil {
			slog.Error("Failed to release credential reset claim", "request_id", req.ID, "error", releaseErr)
		}
		slog.Error("Identity store rejected credential reset", "user_id", req.UserID, "error", err)
		s.auditRecorder.Record(ctx, &req.UserID, audit.StatusFailure, rc, audit.PasswordResetFailureDetails{
			RequestID: req.ID,
			Reason:    audit.ReasonIdentityStore,
		})
		return errors.Storage(err, "failed to reset credential")
	}

	revoked := 0
	if s.deviceRevoker != nil {
		n, err := s.deviceRevoker.RevokeAll(ctx, req.UserID, rc)
		if err != nil {
			slog.Error("Failed to revoke trusted devices", "user_id", req.UserID, "error", err)
		}
		revoked = n
	}

	slog.Info("Credential reset after recovery", "user_id", req.UserID, "request_id", req.ID, "devices_revoked", revoked)
	s.auditRecorder.Record(ctx, &req.UserID, audit.StatusSuccess, rc, audit.PasswordResetSuccessDetails{
		RequestID:      req.ID,
		DevicesRevoked: revoked,
	})
	return nil
}
