package recovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRecoveryRequestRepository implements RecoveryRequestRepository in memory
type InMemRecoveryRequestRepository struct {
	mu       sync.Mutex
	requests map[uuid.UUID]RecoveryRequest
	byToken  map[string]uuid.UUID
}

func NewInMemRecoveryRequestRepository() *InMemRecoveryRequestRepository {
	return &InMemRecoveryRequestRepository{
		requests: make(map[uuid.UUID]RecoveryRequest),
		byToken:  make(map[string]uuid.UUID),
	}
}

func (r *InMemRecoveryRequestRepository) Create(ctx context.Context, req RecoveryRequest) (RecoveryRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byToken[req.TokenHash]; exists {
		return RecoveryRequest{}, fmt.Errorf("duplicate recovery token")
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	r.requests[req.ID] = req
	r.byToken[req.TokenHash] = req.ID
	return req, nil
}

func (r *InMemRecoveryRequestRepository) GetByTokenHash(ctx context.Context, tokenHash string) (RecoveryRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byToken[tokenHash]
	if !ok {
		return RecoveryRequest{}, ErrRequestNotFound
	}
	return r.requests[id], nil
}

func (r *InMemRecoveryRequestRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]RecoveryRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]RecoveryRequest, 0)
	for _, req := range r.requests {
		if req.UserID == userID {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// mutate applies fn to the request if cond holds, under the lock
func (r *InMemRecoveryRequestRepository) mutate(id uuid.UUID, cond func(RecoveryRequest) bool, fn func(*RecoveryRequest)) (RecoveryRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return RecoveryRequest{}, ErrRequestNotFound
	}
	if !cond(req) {
		return RecoveryRequest{}, ErrStatusConflict
	}
	fn(&req)
	r.requests[id] = req
	return req, nil
}

func (r *InMemRecoveryRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (RecoveryRequest, error) {
	return r.mutate(id,
		func(req RecoveryRequest) bool { return req.Status == from },
		func(req *RecoveryRequest) {
			req.Status = to
			req.UpdatedAt = at
			if to == StatusCompleted {
				req.CompletedAt = &at
			}
		})
}

func (r *InMemRecoveryRequestRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, at time.Time) (RecoveryRequest, error) {
	return r.mutate(id,
		func(req RecoveryRequest) bool {
			return req.Status == StatusVerified && req.VerificationAttempts < req.MaxAttempts
		},
		func(req *RecoveryRequest) {
			req.VerificationAttempts++
			req.UpdatedAt = at
		})
}

func (r *InMemRecoveryRequestRepository) ClaimCredentialReset(ctx context.Context, id uuid.UUID, at time.Time) (RecoveryRequest, error) {
	return r.mutate(id,
		func(req RecoveryRequest) bool {
			return req.Status == StatusCompleted && req.CredentialResetAt == nil
		},
		func(req *RecoveryRequest) {
			req.CredentialResetAt = &at
			req.UpdatedAt = at
		})
}

func (r *InMemRecoveryRequestRepository) ReleaseCredentialReset(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.mutate(id,
		func(req RecoveryRequest) bool { return req.CredentialResetAt != nil },
		func(req *RecoveryRequest) {
			req.CredentialResetAt = nil
			req.UpdatedAt = at
		})
	return err
}
