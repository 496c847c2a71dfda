package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query selects one page of a user's events, newest first
type Query struct {
	UserID     uuid.UUID
	EventTypes []EventType
	From       *time.Time
	To         *time.Time
	Page       int // 1-based
	PageSize   int
}

// Offset returns the number of rows to skip for the query's page
func (q Query) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// EventPage is one page of query results
type EventPage struct {
	Events   []Event `json:"events"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

// AuditRepository stores audit events. Events are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, event Event) error
	FindByUser(ctx context.Context, query Query) ([]Event, int, error)
}
