package audit

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-recovery/pkg/client"
	"github.com/tendant/simple-recovery/pkg/clock"
	"github.com/tendant/simple-recovery/pkg/errors"
)

// Recorder is what other services depend on to write audit events
type Recorder interface {
	Record(ctx context.Context, userID *uuid.UUID, status Status, rc client.RequestContext, details Details)
}

// NoopRecorder discards every event
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, *uuid.UUID, Status, client.RequestContext, Details) {}

const defaultWriteTimeout = 5 * time.Second

type AuditService struct {
	repo         AuditRepository
	clock        clock.Clock
	writeTimeout time.Duration
	async        *DispatcherConfig
	dispatcher   *dispatcher
}

type Option func(*AuditService)

func WithClock(c clock.Clock) Option {
	return func(s *AuditService) {
		s.clock = c
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *AuditService) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithAsync moves repository writes onto a background goroutine. Call Close
// on shutdown to flush queued events.
func WithAsync(cfg DispatcherConfig) Option {
	return func(s *AuditService) {
		s.async = &cfg
	}
}

func NewAuditService(repo AuditRepository, opts ...Option) *AuditService {
	s := &AuditService{
		repo:         repo,
		clock:        clock.New(),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.async != nil {
		s.dispatcher = newDispatcher(*s.async, s.write)
	}
	return s
}

// Record appends an event. Failures are logged and never reach the caller.
func (s *AuditService) Record(ctx context.Context, userID *uuid.UUID, status Status, rc client.RequestContext, details Details) {
	if details == nil {
		slog.Warn("Audit event without details ignored", "status", status)
		return
	}

	event := Event{
		ID:        uuid.New(),
		UserID:    userID,
		EventType: details.EventType(),
		Status:    status,
		IPAddress: rc.IPAddress,
		UserAgent: rc.UserAgent,
		Details:   details,
		CreatedAt: s.clock.Now(),
	}

	if s.dispatcher != nil {
		s.dispatcher.emit(ctx, event)
		return
	}

	// The request may already be finishing; the write should still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()
	s.writeWithContext(writeCtx, event)
}

func (s *AuditService) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	s.writeWithContext(ctx, event)
}

func (s *AuditService) writeWithContext(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Audit repository panicked", "event_type", event.EventType, "panic", r)
		}
	}()
	if err := s.repo.Append(ctx, event); err != nil {
		slog.Error("Failed to record audit event", "event_type", event.EventType, "status", event.Status, "error", err)
	}
}

// ListUserEvents returns one page of the user's events, newest first
func (s *AuditService) ListUserEvents(ctx context.Context, query Query) (EventPage, error) {
	if query.UserID == uuid.Nil {
		return EventPage{}, errors.Validation("user_id", "is required")
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = DefaultPageSize
	}
	if query.PageSize > MaxPageSize {
		query.PageSize = MaxPageSize
	}
	if query.Page-1 > math.MaxInt/query.PageSize {
		return EventPage{}, errors.Validation("page", "is too large")
	}
	for _, t := range query.EventTypes {
		if !t.IsValid() {
			return EventPage{}, errors.Validation("eventType", "unknown event type "+string(t))
		}
	}
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return EventPage{}, errors.Validation("from", "must not be after to")
	}

	events, total, err := s.repo.FindByUser(ctx, query)
	if err != nil {
		return EventPage{}, errors.Storage(err, "failed to load audit events")
	}
	return EventPage{
		Events:   events,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}, nil
}

// Dropped reports how many events the async dispatcher discarded
func (s *AuditService) Dropped() uint64 {
	if s.dispatcher == nil {
		return 0
	}
	return s.dispatcher.dropped.Load()
}

// Close flushes queued events. It is a no-op for synchronous services.
func (s *AuditService) Close() {
	if s.dispatcher != nil {
		s.dispatcher.close()
	}
}
