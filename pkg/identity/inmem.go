package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type inMemUser struct {
	id       uuid.UUID
	email    string
	password string
}

// InMemStore keeps accounts in memory for development and tests
type InMemStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*inMemUser
	byEmail map[string]*inMemUser
}

func NewInMemStore() *InMemStore {
	return &InMemStore{
		byID:    make(map[uuid.UUID]*inMemUser),
		byEmail: make(map[string]*inMemUser),
	}
}

// CreateUser adds an account and returns its id
func (s *InMemStore) CreateUser(email, credential string) (uuid.UUID, error) {
	hashed, err := HashCredential(credential)
	if err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	if _, exists := s.byEmail[key]; exists {
		return uuid.Nil, fmt.Errorf("user with email %s already exists", key)
	}
	u := &inMemUser{id: uuid.New(), email: key, password: hashed}
	s.byID[u.id] = u
	s.byEmail[key] = u
	return u.id, nil
}

func (s *InMemStore) LookupUserByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}
	return u.id, nil
}

func (s *InMemStore) ResetCredential(ctx context.Context, userID uuid.UUID, newCredential string) error {
	hashed, err := HashCredential(newCredential)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.password = hashed
	return nil
}

// VerifyCredential reports whether credential is the user's current one
func (s *InMemStore) VerifyCredential(userID uuid.UUID, credential string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	return ok && CredentialMatches(u.password, credential)
}
