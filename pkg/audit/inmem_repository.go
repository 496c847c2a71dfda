package audit

import (
	"context"
	"sort"
	"sync"
)

// InMemAuditRepository keeps events in a slice
type InMemAuditRepository struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemAuditRepository() *InMemAuditRepository {
	return &InMemAuditRepository{}
}

func (r *InMemAuditRepository) Append(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *InMemAuditRepository) FindByUser(ctx context.Context, query Query) ([]Event, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]Event, 0)
	// Walk backwards so equal timestamps keep newest-appended first
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.UserID == nil || *e.UserID != query.UserID {
			continue
		}
		if len(query.EventTypes) > 0 && !containsType(query.EventTypes, e.EventType) {
			continue
		}
		if query.From != nil && e.CreatedAt.Before(*query.From) {
			continue
		}
		if query.To != nil && e.CreatedAt.After(*query.To) {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := query.Offset()
	if start < 0 || start >= total {
		return []Event{}, total, nil
	}
	end := start + query.PageSize
	if query.PageSize <= 0 || end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// All returns every stored event in append order
func (r *InMemAuditRepository) All() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func containsType(types []EventType, t EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
