// Package services – SessionService
//
// This file implements the SessionService, which manages the lifecycle of
// intake sessions: creation, lookup, transcript access, and the age-based
// cleanup sweep. Malformed ids are rejected before any query runs so the
// handler layer can distinguish a validation failure (400) from a well-formed
// but unknown id (404).
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/triage"
)

// SessionRepo defines the repository contract required by SessionService.
type SessionRepo interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, db *gorm.DB, userID string) (*domain.Session, error)

	// GetSession fetches a session by ID.
	GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error)

	// TouchSession bumps the session's last-activity timestamp.
	TouchSession(ctx context.Context, db *gorm.DB, id string) error

	// ListMessages returns the session transcript in insertion order.
	ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error)

	// CountSessions returns the total number of live sessions.
	CountSessions(ctx context.Context, db *gorm.DB) (int64, error)

	// ListSessionsPage returns a page of sessions by last activity.
	ListSessionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Session, error)

	// DeleteSession soft-deletes one session.
	DeleteSession(ctx context.Context, db *gorm.DB, id string) error

	// DeleteSessionsIdleSince removes sessions idle past the cutoff.
	DeleteSessionsIdleSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)

	// PurgeExpiredIdempotency removes idempotency records past their TTL.
	PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

// SessionService provides session lifecycle operations.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the session repository used by this service.
	Repo SessionRepo
	// MaxIdle is how long a session may sit inactive before the cleanup
	// sweep removes it.
	MaxIdle time.Duration
}

// NewSessionService constructs a SessionService with a 24h idle limit.
func NewSessionService(db *gorm.DB, r SessionRepo) *SessionService {
	return &SessionService{DB: db, Repo: r, MaxIdle: 24 * time.Hour}
}

// Create starts a new session, optionally bound to a user account.
func (s *SessionService) Create(ctx context.Context, userID string) (*domain.Session, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	return s.Repo.CreateSession(ctx, s.DB, userID)
}

// Get fetches a session by id. Malformed ids yield ErrInvalidSessionID;
// well-formed unknown ids yield ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("session.id", id)),
	)
	defer span.End()

	if !triage.ValidSessionID(id) {
		return nil, ErrInvalidSessionID
	}
	sess, err := s.Repo.GetSession(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// History returns the full transcript of a session in arrival order.
func (s *SessionService) History(ctx context.Context, id string) ([]domain.Message, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(attribute.String("session.id", id)),
	)
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Repo.ListMessages(ctx, s.DB, id)
}

// ListPage returns a page of sessions ordered by last activity, with the
// total count for pagination metadata.
func (s *SessionService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Session, int64, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "ListPage")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountSessions(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Session{}, 0, nil
	}

	items, err := s.Repo.ListSessionsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Delete removes a session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("session.id", id)),
	)
	defer span.End()

	if !triage.ValidSessionID(id) {
		return ErrInvalidSessionID
	}
	if err := s.Repo.DeleteSession(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// CleanupIdle removes sessions idle longer than olderThan, plus expired
// idempotency records, and returns how many sessions were removed. An
// olderThan of zero or less falls back to the configured MaxIdle; the
// background sweeper always passes zero, the admin cleanup endpoint passes
// the caller-supplied age when one was given.
func (s *SessionService) CleanupIdle(ctx context.Context, olderThan time.Duration) (int64, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "CleanupIdle")
	defer span.End()

	if olderThan <= 0 {
		olderThan = s.MaxIdle
	}
	now := time.Now().UTC()
	removed, err := s.Repo.DeleteSessionsIdleSince(ctx, s.DB, now.Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if _, err := s.Repo.PurgeExpiredIdempotency(ctx, s.DB, now); err != nil {
		return removed, err
	}
	span.SetAttributes(attribute.Int64("sessions.removed", removed))
	return removed, nil
}
