package recoverymethod

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemState struct {
	methods   map[uuid.UUID]RecoveryMethod
	questions map[uuid.UUID][]SecurityQuestion
	contacts  map[uuid.UUID]RecoveryContact
}

func (s inMemState) clone() inMemState {
	c := inMemState{
		methods:   make(map[uuid.UUID]RecoveryMethod, len(s.methods)),
		questions: make(map[uuid.UUID][]SecurityQuestion, len(s.questions)),
		contacts:  make(map[uuid.UUID]RecoveryContact, len(s.contacts)),
	}
	for k, v := range s.methods {
		c.methods[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = append([]SecurityQuestion(nil), v...)
	}
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	return c
}

// InMemRecoveryMethodRepository keeps methods in maps. Transactions are
// serialized and roll back by restoring a snapshot.
type InMemRecoveryMethodRepository struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state inMemState
}

func NewInMemRecoveryMethodRepository() *InMemRecoveryMethodRepository {
	return &InMemRecoveryMethodRepository{
		state: inMemState{
			methods:   make(map[uuid.UUID]RecoveryMethod),
			questions: make(map[uuid.UUID][]SecurityQuestion),
			contacts:  make(map[uuid.UUID]RecoveryContact),
		},
	}
}

// WithinTx must not be nested
func (r *InMemRecoveryMethodRepository) WithinTx(ctx context.Context, fn func(repo RecoveryMethodRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.state.clone()
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.state = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *InMemRecoveryMethodRepository) GetMethod(ctx context.Context, id uuid.UUID) (RecoveryMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.state.methods[id]
	if !ok {
		return RecoveryMethod{}, ErrMethodNotFound
	}
	return m, nil
}

func (r *InMemRecoveryMethodRepository) FindMethodsByUser(ctx context.Context, userID uuid.UUID) ([]RecoveryMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	methods := make([]RecoveryMethod, 0)
	for _, m := range r.state.methods {
		if m.UserID == userID {
			methods = append(methods, m)
		}
	}
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].IsPrimary != methods[j].IsPrimary {
			return methods[i].IsPrimary
		}
		return methods[i].CreatedAt.After(methods[j].CreatedAt)
	})
	return methods, nil
}

func (r *InMemRecoveryMethodRepository) UpsertMethod(ctx context.Context, method RecoveryMethod) (RecoveryMethod, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.state.methods {
		if existing.UserID == method.UserID && existing.MethodType == method.MethodType {
			existing.IsVerified = method.IsVerified
			existing.UpdatedAt = method.UpdatedAt
			r.state.methods[id] = existing
			return existing, false, nil
		}
	}

	if method.ID == uuid.Nil {
		method.ID = uuid.New()
	}
	r.state.methods[method.ID] = method
	return method, true, nil
}

func (r *InMemRecoveryMethodRepository) DeleteMethod(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.state.methods[id]
	if !ok || m.UserID != userID {
		return ErrMethodNotFound
	}
	delete(r.state.methods, id)
	delete(r.state.questions, id)
	delete(r.state.contacts, id)
	return nil
}

func (r *InMemRecoveryMethodRepository) ClearPrimary(ctx context.Context, userID uuid.UUID, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, m := range r.state.methods {
		if m.UserID == userID && m.IsPrimary {
			m.IsPrimary = false
			m.UpdatedAt = updatedAt
			r.state.methods[id] = m
		}
	}
	return nil
}

func (r *InMemRecoveryMethodRepository) MarkPrimary(ctx context.Context, id uuid.UUID, userID uuid.UUID, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.state.methods[id]
	if !ok || m.UserID != userID {
		return ErrMethodNotFound
	}
	m.IsPrimary = true
	m.UpdatedAt = updatedAt
	r.state.methods[id] = m
	return nil
}

func (r *InMemRecoveryMethodRepository) ReplaceQuestions(ctx context.Context, methodID uuid.UUID, questions []SecurityQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.methods[methodID]; !ok {
		return ErrMethodNotFound
	}
	stored := make([]SecurityQuestion, len(questions))
	for i, q := range questions {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		q.RecoveryMethodID = methodID
		stored[i] = q
	}
	r.state.questions[methodID] = stored
	return nil
}

func (r *InMemRecoveryMethodRepository) FindQuestions(ctx context.Context, methodID uuid.UUID) ([]SecurityQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	questions := append([]SecurityQuestion{}, r.state.questions[methodID]...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Position < questions[j].Position
	})
	return questions, nil
}

func (r *InMemRecoveryMethodRepository) ReplaceContact(ctx context.Context, methodID uuid.UUID, value string) (RecoveryContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.state.methods[methodID]; !ok {
		return RecoveryContact{}, ErrMethodNotFound
	}
	contact := RecoveryContact{
		ID:               uuid.New(),
		RecoveryMethodID: methodID,
		Value:            value,
	}
	r.state.contacts[methodID] = contact
	return contact, nil
}

func (r *InMemRecoveryMethodRepository) GetContact(ctx context.Context, methodID uuid.UUID) (RecoveryContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.state.contacts[methodID]
	if !ok {
		return RecoveryContact{}, ErrContactNotFound
	}
	return c, nil
}
