package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by a pool, a connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresAuditRepository stores events in the auth_event table
type PostgresAuditRepository struct {
	db DBTX
}

func NewPostgresAuditRepository(db DBTX) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Append(ctx context.Context, event Event) error {
	details, err := EncodeDetails(event.Details)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO auth_event (id, user_id, event_type, status, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.UserID, string(event.EventType), string(event.Status),
		event.IPAddress, event.UserAgent, details, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert auth event: %w", err)
	}
	return nil
}

func (r *PostgresAuditRepository) FindByUser(ctx context.Context, query Query) ([]Event, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{query.UserID}

	if len(query.EventTypes) > 0 {
		types := make([]string, len(query.EventTypes))
		for i, t := range query.EventTypes {
			types[i] = string(t)
		}
		args = append(args, types)
		where = append(where, fmt.Sprintf("event_type = ANY($%d)", len(args)))
	}
	if query.From != nil {
		args = append(args, *query.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if query.To != nil {
		args = append(args, *query.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM auth_event WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count auth events: %w", err)
	}

	args = append(args, query.PageSize, query.Offset())
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, event_type, status, ip_address, user_agent, details, created_at
		FROM auth_event
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query auth events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e         Event
			userID    *uuid.UUID
			eventType string
			status    string
			raw       []byte
		)
		if err := rows.Scan(&e.ID, &userID, &eventType, &status, &e.IPAddress, &e.UserAgent, &raw, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan auth event: %w", err)
		}
		e.UserID = userID
		e.EventType = EventType(eventType)
		e.Status = Status(status)
		e.Details, err = DecodeDetails(e.EventType, raw)
		if err != nil {
			return nil, 0, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read auth events: %w", err)
	}
	return events, total, nil
}
