// Package services – BookingService
//
// This file implements the booking coordinator. Slot allocation happens in
// the in-memory directory under its lock (so the last slot has exactly one
// winner); the resulting appointment row is then persisted. An optional
// idempotency key gives the endpoint at-most-once semantics across retries:
// a replayed key returns the original appointment instead of claiming a
// second slot.
//
// When no slot exists in the requested specialty the service reports
// ErrNoAvailability; the handler layer turns that into a response carrying
// the fallback phone line rather than an error status.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/directory"
	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/repo"
	"github.com/clinova/go-triage-backend/internal/search"
	"github.com/clinova/go-triage-backend/internal/triage"
)

// BookingRepo defines the repository contract required by BookingService.
type BookingRepo interface {
	// GetSession fetches a session by ID.
	GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error)

	// CreateAppointment persists a confirmed booking.
	CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error)

	// GetAppointment fetches an appointment by ID.
	GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error)

	// ListAppointmentsBySession returns a session's appointments.
	ListAppointmentsBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Appointment, error)

	// UpdateAppointmentStatus moves an appointment to a new status.
	UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error

	// GetIdempotency returns a non-expired idempotency record.
	GetIdempotency(ctx context.Context, db *gorm.DB, userID, sessionID, key string, now time.Time) (*domain.Idempotency, error)

	// CreateIdempotency records a processed booking for replay detection.
	CreateIdempotency(ctx context.Context, db *gorm.DB, userID, sessionID, key, appointmentID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// BookingService coordinates slot allocation and appointment persistence.
type BookingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the persistence contract used by this service.
	Repo BookingRepo
	// Directory is the doctor registry and slot inventory.
	Directory *directory.Directory
	// Index ranks doctor profiles for free-text lookup. Optional; without it
	// Search falls back to the full roster.
	Index search.Index
	// IdempotencyTTL bounds how long a processed key suppresses replays.
	IdempotencyTTL time.Duration
}

// NewBookingService constructs a BookingService with a 24h idempotency TTL
// and a profile index built from the current roster.
func NewBookingService(db *gorm.DB, r BookingRepo, dir *directory.Directory) *BookingService {
	return &BookingService{
		DB:             db,
		Repo:           r,
		Directory:      dir,
		Index:          search.NewIndex(profileDocs(dir.Snapshot())),
		IdempotencyTTL: 24 * time.Hour,
	}
}

// profileDocs flattens doctor profiles into searchable documents.
func profileDocs(docs []directory.Doctor) []search.Doc {
	out := make([]search.Doc, 0, len(docs))
	for _, d := range docs {
		out = append(out, search.Doc{
			ID:   d.ID,
			Text: d.Name + " " + d.Specialty + " " + d.Description,
		})
	}
	return out
}

// BookingRequest carries everything needed to book one appointment.
type BookingRequest struct {
	SessionID      string
	UserID         string
	Specialty      string
	Notes          string
	IdempotencyKey string
	// TriageResult is the snapshot frozen onto the appointment row. May be
	// nil when booking without a completed triage.
	TriageResult *domain.TriageResult
}

// Book claims the earliest open slot in the specialty and persists the
// appointment. The bool result reports whether this call created the
// appointment (false means an idempotent replay returned the original).
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*domain.Appointment, bool, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Book",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID),
			attribute.String("specialty", req.Specialty),
		),
	)
	defer span.End()

	if !triage.ValidSessionID(req.SessionID) {
		return nil, false, ErrInvalidSessionID
	}
	if req.Specialty == "" {
		return nil, false, ErrMissingSpecialty
	}
	if _, err := s.Repo.GetSession(ctx, s.DB, req.SessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrSessionNotFound
		}
		return nil, false, err
	}

	now := time.Now().UTC()
	if req.IdempotencyKey != "" {
		if rec, err := s.Repo.GetIdempotency(ctx, s.DB, req.UserID, req.SessionID, req.IdempotencyKey, now); err == nil && rec != nil {
			apt, err := s.Repo.GetAppointment(ctx, s.DB, rec.AppointmentID)
			if err != nil {
				return nil, false, err
			}
			span.SetAttributes(attribute.Bool("replay", true))
			return apt, false, nil
		}
	}

	alloc, err := s.Directory.Allocate(req.Specialty)
	if err != nil {
		if errors.Is(err, directory.ErrNoAvailability) {
			return nil, false, ErrNoAvailability
		}
		return nil, false, err
	}

	apt, err := s.Repo.CreateAppointment(ctx, s.DB, &domain.Appointment{
		SessionID:     req.SessionID,
		UserID:        req.UserID,
		DoctorID:      alloc.DoctorID,
		DoctorName:    alloc.DoctorName,
		Specialty:     alloc.Specialty,
		ScheduledTime: alloc.ScheduledTime,
		Status:        domain.AppointmentConfirmed,
		Notes:         req.Notes,
		TriageResult:  req.TriageResult,
	})
	if err != nil {
		// Persistence failed after the claim; give the slot back.
		_ = s.Directory.Release(alloc.DoctorID, alloc.ScheduledTime)
		return nil, false, err
	}

	if req.IdempotencyKey != "" {
		if _, err := s.Repo.CreateIdempotency(ctx, s.DB, req.UserID, req.SessionID, req.IdempotencyKey, apt.ID, 201, s.IdempotencyTTL); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				// Lost the race against an identical retry: undo our booking
				// and return the winner's appointment.
				_ = s.Repo.UpdateAppointmentStatus(ctx, s.DB, apt.ID, domain.AppointmentCancelled)
				_ = s.Directory.Release(alloc.DoctorID, alloc.ScheduledTime)
				if rec, gerr := s.Repo.GetIdempotency(ctx, s.DB, req.UserID, req.SessionID, req.IdempotencyKey, now); gerr == nil && rec != nil {
					winner, werr := s.Repo.GetAppointment(ctx, s.DB, rec.AppointmentID)
					if werr != nil {
						return nil, false, werr
					}
					span.SetAttributes(attribute.Bool("replay", true))
					return winner, false, nil
				}
			}
			return nil, false, err
		}
	}

	return apt, true, nil
}

// Cancel moves an appointment to cancelled and returns its slot to the
// doctor's inventory so the next availability query offers it again.
func (s *BookingService) Cancel(ctx context.Context, appointmentID string) (*domain.Appointment, error) {
	tr := otel.Tracer("services/BookingService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("appointment.id", appointmentID)),
	)
	defer span.End()

	apt, err := s.Repo.GetAppointment(ctx, s.DB, appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	if apt.Status == domain.AppointmentCancelled {
		return nil, ErrAlreadyCancelled
	}

	if err := s.Repo.UpdateAppointmentStatus(ctx, s.DB, apt.ID, domain.AppointmentCancelled); err != nil {
		return nil, err
	}
	// Unknown doctors can only happen with rows from an older roster; the
	// cancellation itself still stands.
	_ = s.Directory.Release(apt.DoctorID, apt.ScheduledTime)

	apt.Status = domain.AppointmentCancelled
	return apt, nil
}

// BySession returns a session's appointments, newest first.
func (s *BookingService) BySession(ctx context.Context, sessionID string) ([]domain.Appointment, error) {
	if !triage.ValidSessionID(sessionID) {
		return nil, ErrInvalidSessionID
	}
	return s.Repo.ListAppointmentsBySession(ctx, s.DB, sessionID)
}

// NextSlot returns the earliest open slot for a specialty, or
// ErrNoAvailability.
func (s *BookingService) NextSlot(specialty string) (string, error) {
	slot, err := s.Directory.NextAvailableSlot(specialty)
	if err != nil {
		if errors.Is(err, directory.ErrNoAvailability) {
			return "", ErrNoAvailability
		}
		return "", err
	}
	return slot, nil
}

// Specialists returns the doctors in a specialty, or all doctors when
// specialty is empty.
func (s *BookingService) Specialists(specialty string) []directory.Doctor {
	if specialty == "" {
		return s.Directory.Snapshot()
	}
	return s.Directory.DoctorsBySpecialty(specialty)
}

// Specialties returns the distinct specialties in the registry, sorted.
func (s *BookingService) Specialties() []string {
	return s.Directory.Specialties()
}

// Search ranks doctors against a free-text query ("skin rash", "chest
// pain"). An empty query or a missing index returns the full roster.
func (s *BookingService) Search(query string, k int) []directory.Doctor {
	query = strings.TrimSpace(query)
	if s.Index == nil || query == "" {
		return s.Directory.Snapshot()
	}
	results := s.Index.TopK(query, k)
	out := make([]directory.Doctor, 0, len(results))
	for _, r := range results {
		if d, ok := s.Directory.DoctorByID(r.ID); ok {
			out = append(out, d)
		}
	}
	return out
}
