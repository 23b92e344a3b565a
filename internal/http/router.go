// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/config"
	"github.com/clinova/go-triage-backend/internal/directory"
	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/http/handlers"
	"github.com/clinova/go-triage-backend/internal/http/middleware"
	"github.com/clinova/go-triage-backend/internal/repo"
	"github.com/clinova/go-triage-backend/internal/services"
	"github.com/clinova/go-triage-backend/internal/triage"
)

// sessionRepoShim adapts the repository free functions to the
// services.SessionRepo interface expected by the SessionService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type sessionRepoShim struct{}

// CreateSession proxies repo.CreateSession.
func (sessionRepoShim) CreateSession(ctx context.Context, db *gorm.DB, userID string) (*domain.Session, error) {
	return repo.CreateSession(ctx, db, userID)
}

// GetSession proxies repo.GetSession.
func (sessionRepoShim) GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	return repo.GetSession(ctx, db, id)
}

// TouchSession proxies repo.TouchSession.
func (sessionRepoShim) TouchSession(ctx context.Context, db *gorm.DB, id string) error {
	return repo.TouchSession(ctx, db, id)
}

// ListMessages proxies repo.ListMessages.
func (sessionRepoShim) ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error) {
	return repo.ListMessages(ctx, db, sessionID)
}

// CountSessions proxies repo.CountSessions (pagination support).
func (sessionRepoShim) CountSessions(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountSessions(ctx, db)
}

// ListSessionsPage proxies repo.ListSessionsPage (pagination support).
func (sessionRepoShim) ListSessionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Session, error) {
	return repo.ListSessionsPage(ctx, db, offset, limit)
}

// DeleteSession proxies repo.DeleteSession.
func (sessionRepoShim) DeleteSession(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteSession(ctx, db, id)
}

// DeleteSessionsIdleSince proxies repo.DeleteSessionsIdleSince (cleanup sweep).
func (sessionRepoShim) DeleteSessionsIdleSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	return repo.DeleteSessionsIdleSince(ctx, db, cutoff)
}

// PurgeExpiredIdempotency proxies repo.PurgeExpiredIdempotency (cleanup sweep).
func (sessionRepoShim) PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, db, now)
}

// chatRepoShim adapts the repository free functions to the services.ChatRepo
// interface expected by the ChatService.
type chatRepoShim struct{}

// GetSession proxies repo.GetSession.
func (chatRepoShim) GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	return repo.GetSession(ctx, db, id)
}

// TouchSession proxies repo.TouchSession.
func (chatRepoShim) TouchSession(ctx context.Context, db *gorm.DB, id string) error {
	return repo.TouchSession(ctx, db, id)
}

// CreateMessage proxies repo.CreateMessage.
func (chatRepoShim) CreateMessage(ctx context.Context, db *gorm.DB, sessionID, sender, content string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, db, sessionID, sender, content)
}

// ListMessages proxies repo.ListMessages.
func (chatRepoShim) ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error) {
	return repo.ListMessages(ctx, db, sessionID)
}

// CreateTriageLog proxies repo.CreateTriageLog.
func (chatRepoShim) CreateTriageLog(ctx context.Context, db *gorm.DB, sessionID, messageID string, result domain.TriageResult) (*domain.TriageLog, error) {
	return repo.CreateTriageLog(ctx, db, sessionID, messageID, result)
}

// bookingRepoShim adapts the repository free functions to the
// services.BookingRepo interface expected by the BookingService.
type bookingRepoShim struct{}

// GetSession proxies repo.GetSession.
func (bookingRepoShim) GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	return repo.GetSession(ctx, db, id)
}

// CreateAppointment proxies repo.CreateAppointment.
func (bookingRepoShim) CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error) {
	return repo.CreateAppointment(ctx, db, a)
}

// GetAppointment proxies repo.GetAppointment.
func (bookingRepoShim) GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	return repo.GetAppointment(ctx, db, id)
}

// ListAppointmentsBySession proxies repo.ListAppointmentsBySession.
func (bookingRepoShim) ListAppointmentsBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Appointment, error) {
	return repo.ListAppointmentsBySession(ctx, db, sessionID)
}

// UpdateAppointmentStatus proxies repo.UpdateAppointmentStatus.
func (bookingRepoShim) UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	return repo.UpdateAppointmentStatus(ctx, db, id, status)
}

// GetIdempotency proxies repo.GetIdempotency (replay detection).
func (bookingRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, userID, sessionID, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, sessionID, key, now)
}

// CreateIdempotency proxies repo.CreateIdempotency (replay detection).
func (bookingRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, sessionID, key, appointmentID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, sessionID, key, appointmentID, status, ttl)
}

// reportRepoShim adapts the repository free functions to the
// services.ReportRepo interface expected by the ReportService.
type reportRepoShim struct{}

// GetSession proxies repo.GetSession.
func (reportRepoShim) GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	return repo.GetSession(ctx, db, id)
}

// ListMessages proxies repo.ListMessages.
func (reportRepoShim) ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error) {
	return repo.ListMessages(ctx, db, sessionID)
}

// ListTriageLogs proxies repo.ListTriageLogs.
func (reportRepoShim) ListTriageLogs(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TriageLog, error) {
	return repo.ListTriageLogs(ctx, db, sessionID)
}

// ListAppointmentsBySession proxies repo.ListAppointmentsBySession.
func (reportRepoShim) ListAppointmentsBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Appointment, error) {
	return repo.ListAppointmentsBySession(ctx, db, sessionID)
}

// adminShim satisfies handlers.AdminService from the db handle and the live
// directory; the admin surface is read-mostly and needs no service struct.
type adminShim struct {
	db  *gorm.DB
	dir *directory.Directory
}

// Stats proxies repo.CollectStats.
func (a adminShim) Stats(ctx context.Context) (*repo.ServiceStats, error) {
	return repo.CollectStats(ctx, a.db)
}

// DirectoryStats proxies directory.Snapshot aggregates.
func (a adminShim) DirectoryStats() directory.Stats {
	return a.dir.Stats()
}

// NewSessionSweeper builds a SessionService suitable for the background
// idle-session sweep, reusing the repo shim wired into the router.
func NewSessionSweeper(db *gorm.DB, maxIdle time.Duration) *services.SessionService {
	svc := services.NewSessionService(db, sessionRepoShim{})
	svc.MaxIdle = maxIdle
	return svc
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, dir *directory.Directory, machine *triage.StateMachine, messenger handlers.Messenger, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. Patient messages never reach the
	// log line (bodies are not logged); this scrubs what the transport leaks.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
		SkipPaths: []string{"/health", "/metrics"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// Transcripts and intake reports compress well.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, sessionID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, sessionID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySessionUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-Session-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-Session-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/directory/state machine
	sessionSvc := services.NewSessionService(db, sessionRepoShim{})
	sessionSvc.MaxIdle = cfg.SessionMaxIdle

	chatSvc := services.NewChatService(db, chatRepoShim{}, machine)
	chatSvc.MaxPromptLen = cfg.MaxPromptRunes

	bookingSvc := services.NewBookingService(db, bookingRepoShim{}, dir)
	bookingSvc.IdempotencyTTL = cfg.IdempotencyTTL

	reportSvc := services.NewReportService(db, reportRepoShim{})

	h := handlers.New(sessionSvc, chatSvc, bookingSvc, reportSvc, adminShim{db: db, dir: dir}, messenger)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Sessions
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:id", h.GetSession)
		api.GET("/sessions/:id/history", h.GetSessionHistory)
		api.GET("/sessions/:id/report", h.GetSessionReport)
		api.GET("/sessions/:id/appointments", h.ListSessionAppointments)
		api.DELETE("/sessions/:id", h.DeleteSession)

		// Triage
		api.POST("/chat", h.Chat)
		api.POST("/chat/conversational", h.Converse)

		// Booking and directory
		api.POST("/appointments", h.BookAppointment)
		api.DELETE("/appointments/:id", h.CancelAppointment)
		api.GET("/specialties", h.ListSpecialties)
		api.GET("/specialties/:name/next-slot", h.NextSlot)
		api.GET("/specialists", h.ListSpecialists)

		// Admin
		api.GET("/admin/stats", h.AdminStats)
		api.GET("/admin/sessions", h.AdminListSessions)
		api.POST("/admin/cleanup", h.AdminCleanup)

		// Doctor messaging gateway
		api.POST("/whatsapp/send", h.GatewaySend)
		api.GET("/whatsapp/messages", h.GatewayMessages)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
