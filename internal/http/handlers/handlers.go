// Triage API handler wiring.
//
// This file defines the service contracts consumed by the HTTP layer and the
// Handlers aggregate that binds them. Handlers are transport-thin: they
// validate input, call application services, and translate results into HTTP
// responses. Business rules (safety ordering, slot allocation, idempotency)
// live in the services.
package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinova/go-triage-backend/internal/directory"
	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/gateway"
	"github.com/clinova/go-triage-backend/internal/repo"
	"github.com/clinova/go-triage-backend/internal/services"
	"github.com/clinova/go-triage-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SessionService defines session lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SessionService interface {
	// Create starts a new session for an optional user id.
	Create(ctx context.Context, userID string) (*domain.Session, error)
	// Get fetches a session by id.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// History returns the session transcript in arrival order.
	History(ctx context.Context, id string) ([]domain.Message, error)
	// ListPage returns a page of sessions and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Session, int64, error)
	// Delete removes a session.
	Delete(ctx context.Context, id string) error
	// CleanupIdle removes sessions idle longer than olderThan (zero means
	// the configured default) and returns how many were removed.
	CleanupIdle(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ChatService defines the triage entry points consumed by HTTP handlers.
type ChatService interface {
	// OneShot runs a single-message analysis.
	OneShot(ctx context.Context, sessionID, message string) (*services.OneShotReply, error)
	// Converse advances the multi-turn intake dialogue by one message.
	Converse(ctx context.Context, sessionID, message string, state domain.ConversationState) (*services.ConversationReply, error)
}

// BookingService defines appointment operations consumed by HTTP handlers.
type BookingService interface {
	// Book claims a slot and persists the appointment.
	Book(ctx context.Context, req services.BookingRequest) (*domain.Appointment, bool, error)
	// Cancel moves an appointment to cancelled and frees its slot.
	Cancel(ctx context.Context, appointmentID string) (*domain.Appointment, error)
	// BySession returns a session's appointments.
	BySession(ctx context.Context, sessionID string) ([]domain.Appointment, error)
	// NextSlot returns the earliest open slot for a specialty.
	NextSlot(specialty string) (string, error)
	// Specialists returns doctors, optionally filtered by specialty.
	Specialists(specialty string) []directory.Doctor
	// Search ranks doctors against a free-text symptom query.
	Search(query string, k int) []directory.Doctor
	// Specialties returns the distinct specialties on offer.
	Specialties() []string
}

// ReportService defines the intake report builder consumed by HTTP handlers.
type ReportService interface {
	// Build assembles the report for one session.
	Build(ctx context.Context, sessionID string) (*services.IntakeReport, error)
}

// AdminService defines aggregate queries for the admin surface.
type AdminService interface {
	// Stats returns point-in-time aggregates over the persisted tables.
	Stats(ctx context.Context) (*repo.ServiceStats, error)
	// DirectoryStats summarizes the doctor registry.
	DirectoryStats() directory.Stats
}

// Messenger defines the outbound messaging channel consumed by the gateway
// handlers.
type Messenger interface {
	// SendText delivers one text message to a conversation.
	SendText(ctx context.Context, conversationID, text string) error
	// ListMessages fetches recent messages from a conversation.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]gateway.Message, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for sessions, triage, booking, reports,
// admin, and the messaging gateway. It depends on abstract service interfaces
// to keep transport concerns separate from business logic.
type Handlers struct {
	sessionSvc SessionService
	chatSvc    ChatService
	bookingSvc BookingService
	reportSvc  ReportService
	adminSvc   AdminService
	messenger  Messenger
}

// New constructs a Handlers instance bound to the given services. The
// messenger may be nil; gateway endpoints then answer 503.
func New(sessionSvc SessionService, chatSvc ChatService, bookingSvc BookingService, reportSvc ReportService, adminSvc AdminService, messenger Messenger) *Handlers {
	return &Handlers{
		sessionSvc: sessionSvc,
		chatSvc:    chatSvc,
		bookingSvc: bookingSvc,
		reportSvc:  reportSvc,
		adminSvc:   adminSvc,
		messenger:  messenger,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}
