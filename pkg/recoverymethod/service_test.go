package recoverymethod

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-recovery/pkg/audit"
	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/clock"
	"github.com/tendant/simple-recovery/pkg/errors"
	"github.com/tendant/simple-recovery/pkg/hasher"
)

var rc = client.RequestContext{IPAddress: "10.1.1.1", UserAgent: "test"}

type testEnv struct {
	svc   *RecoveryMethodService
	repo  *InMemRecoveryMethodRepository
	audit *audit.InMemAuditRepository
	clock *clock.FakeClock
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	env := testEnv{
		repo:  NewInMemRecoveryMethodRepository(),
		audit: audit.NewInMemAuditRepository(),
		clock: clock.NewFake(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)),
	}
	env.svc = NewRecoveryMethodService(env.repo,
		WithClock(env.clock),
		WithAuditRecorder(audit.NewAuditService(env.audit, audit.WithClock(env.clock))),
	)
	return env
}

func countPrimary(t *testing.T, env testEnv, userID uuid.UUID) int {
	t.Helper()
	methods, err := env.svc.ListMethods(context.Background(), userID)
	require.NoError(t, err)
	n := 0
	for _, m := range methods {
		if m.IsPrimary {
			n++
		}
	}
	return n
}

func TestAddSecurityQuestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	method, err := env.svc.AddSecurityQuestions(ctx, userID, []QuestionInput{
		{Question: "City?", Answer: "paris"},
		{Question: "Pet?", Answer: "rex"},
	}, rc)
	require.NoError(t, err)
	assert.Equal(t, MethodSecurityQuestions, method.MethodType)
	assert.True(t, method.IsVerified)
	assert.False(t, method.IsPrimary)

	questions, err := env.svc.GetQuestions(ctx, method.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "City?", questions[0].QuestionText)
	assert.Equal(t, hasher.Hash("paris"), questions[0].AnswerHash)
	assert.NotEqual(t, "paris", questions[0].AnswerHash)

	challenges, err := env.svc.GetChallengeQuestions(ctx, method.ID)
	require.NoError(t, err)
	assert.Equal(t, []Challenge{
		{ID: questions[0].ID, QuestionText: "City?"},
		{ID: questions[1].ID, QuestionText: "Pet?"},
	}, challenges)

	events := env.audit.All()
	require.Len(t, events, 1)
	added := events[0].Details.(audit.RecoveryMethodAddedDetails)
	assert.Equal(t, method.ID, added.RecoveryMethodID)
	assert.False(t, added.Replaced)
	assert.Equal(t, 2, added.QuestionCount)
}

func TestAddSecurityQuestions_ReplacesExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := env.svc.AddSecurityQuestions(ctx, userID, []QuestionInput{{"City?", "paris"}, {"Pet?", "rex"}}, rc)
	require.NoError(t, err)
	second, err := env.svc.AddSecurityQuestions(ctx, userID, []QuestionInput{{"School?", "lincoln"}}, rc)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	methods, err := env.svc.ListMethods(ctx, userID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, []string{"School?"}, methods[0].Questions)

	events := env.audit.All()
	assert.True(t, events[len(events)-1].Details.(audit.RecoveryMethodAddedDetails).Replaced)
}

func TestAddContactMethods(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	email, err := env.svc.AddRecoveryEmail(ctx, userID, "Backup@Example.com", rc)
	require.NoError(t, err)
	assert.Equal(t, MethodRecoveryEmail, email.MethodType)
	assert.False(t, email.IsVerified)

	env.clock.Advance(time.Minute)
	phone, err := env.svc.AddRecoveryPhone(ctx, userID, "+1 415-555-0100", rc)
	require.NoError(t, err)
	assert.False(t, phone.IsVerified)

	contact, err := env.svc.GetContact(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, "backup@example.com", contact)

	// Replacing the email keeps one method with the new value
	_, err = env.svc.AddRecoveryEmail(ctx, userID, "new@example.com", rc)
	require.NoError(t, err)
	methods, err := env.svc.ListMethods(ctx, userID)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	contacts := map[MethodType]string{}
	for _, m := range methods {
		contacts[m.MethodType] = m.Contact
		assert.Empty(t, m.Questions)
	}
	assert.Equal(t, "new@example.com", contacts[MethodRecoveryEmail])
	assert.Equal(t, "+14155550100", contacts[MethodRecoveryPhone])

	_, err = env.svc.GetChallengeQuestions(ctx, phone.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestAddMethod_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.AddRecoveryEmail(ctx, uuid.New(), "nope", rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = env.svc.AddRecoveryPhone(ctx, uuid.New(), "123", rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = env.svc.AddSecurityQuestions(ctx, uuid.New(), nil, rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	_, err = env.svc.AddRecoveryEmail(ctx, uuid.Nil, "a@example.com", rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))

	assert.Empty(t, env.audit.All())
}

func TestSetPrimary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	questions, err := env.svc.AddSecurityQuestions(ctx, userID, []QuestionInput{{"City?", "paris"}}, rc)
	require.NoError(t, err)
	email, err := env.svc.AddRecoveryEmail(ctx, userID, "a@example.com", rc)
	require.NoError(t, err)

	require.NoError(t, env.svc.SetPrimary(ctx, questions.ID, userID, rc))
	require.NoError(t, env.svc.SetPrimary(ctx, questions.ID, userID, rc))
	assert.Equal(t, 1, countPrimary(t, env, userID))

	require.NoError(t, env.svc.SetPrimary(ctx, email.ID, userID, rc))
	assert.Equal(t, 1, countPrimary(t, env, userID))

	methods, err := env.svc.ListMethods(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, email.ID, methods[0].ID)
	assert.True(t, methods[0].IsPrimary)

	events := env.audit.All()
	assert.Equal(t, audit.EventRecoveryMethodPrimarySet, events[len(events)-1].EventType)
}

func TestSetPrimary_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	var ids []uuid.UUID
	q, err := env.svc.AddSecurityQuestions(ctx, userID, []QuestionInput{{"City?", "paris"}}, rc)
	require.NoError(t, err)
	ids = append(ids, q.ID)
	e, err := env.svc.AddRecoveryEmail(ctx, userID, "a@example.com", rc)
	require.NoError(t, err)
	ids = append(ids, e.ID)
	p, err := env.svc.AddRecoveryPhone(ctx, userID, "+14155550100", rc)
	require.NoError(t, err)
	ids = append(ids, p.ID)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			assert.NoError(t, env.svc.SetPrimary(ctx, id, userID, rc))
		}(ids[i%len(ids)])
	}
	wg.Wait()

	assert.Equal(t, 1, countPrimary(t, env, userID))
}

func TestOwnershipChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()

	m, err := env.svc.AddRecoveryEmail(ctx, owner, "a@example.com", rc)
	require.NoError(t, err)

	err = env.svc.SetPrimary(ctx, m.ID, intruder, rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
	err = env.svc.DeleteMethod(ctx, m.ID, intruder, rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))

	err = env.svc.SetPrimary(ctx, uuid.New(), owner, rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	err = env.svc.DeleteMethod(ctx, uuid.New(), owner, rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	require.NoError(t, env.svc.DeleteMethod(ctx, m.ID, owner, rc))
	_, err = env.svc.GetContact(ctx, m.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))

	events := env.audit.All()
	assert.Equal(t, audit.EventRecoveryMethodRemoved, events[len(events)-1].EventType)
}

func TestSelectForRecovery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	_, found, err := env.svc.SelectForRecovery(ctx, userID)
	require.NoError(t, err)
	assert.False(t, found)

	q, err := env.svc.AddSecurityQuestions(ctx, userID, []QuestionInput{{"City?", "paris"}}, rc)
	require.NoError(t, err)
	env.clock.Advance(time.Hour)
	e, err := env.svc.AddRecoveryEmail(ctx, userID, "a@example.com", rc)
	require.NoError(t, err)

	// Without a primary the newest method wins
	selected, found, err := env.svc.SelectForRecovery(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, e.ID, selected.ID)

	require.NoError(t, env.svc.SetPrimary(ctx, q.ID, userID, rc))
	selected, _, err = env.svc.SelectForRecovery(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, selected.ID)
}

type failingTxRepository struct {
	*InMemRecoveryMethodRepository
}

func (r failingTxRepository) ReplaceContact(ctx context.Context, methodID uuid.UUID, value string) (RecoveryContact, error) {
	return RecoveryContact{}, fmt.Errorf("disk full")
}

func (r failingTxRepository) WithinTx(ctx context.Context, fn func(RecoveryMethodRepository) error) error {
	return r.InMemRecoveryMethodRepository.WithinTx(ctx, func(RecoveryMethodRepository) error {
		return fn(r)
	})
}

func TestAddMethod_RollsBackOnFailure(t *testing.T) {
	inner := NewInMemRecoveryMethodRepository()
	svc := NewRecoveryMethodService(failingTxRepository{inner})
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.AddRecoveryEmail(ctx, userID, "a@example.com", rc)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))

	methods, err := inner.FindMethodsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, methods, "method row must be rolled back")
}
