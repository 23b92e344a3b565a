package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clinova/go-triage-backend/internal/config"
	"github.com/clinova/go-triage-backend/internal/directory"
	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/http/middleware"
	"github.com/clinova/go-triage-backend/internal/triage"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on list endpoints
	if err := db.AutoMigrate(&domain.Session{}, &domain.Message{}, &domain.TriageLog{}, &domain.Appointment{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath:     base,
		RateRPS:         100,
		RateBurst:       10,
		MaxPromptRunes:  2000,
		SessionMaxIdle:  24 * time.Hour,
		IdempotencyTTL:  24 * time.Hour,
		CleanupInterval: time.Hour,
		CORS:            config.CORSConfig{AllowedOrigins: nil}, // AllowAllOrigins branch
		Security:        config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, directory.New(), &triage.StateMachine{}, nil, cfg)
	return r, db
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig("/api/v1"))

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newTestRouter(t, cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

// End-to-end smoke through the real stack: create a session, then run one
// conversational turn with an emergency message. No LLM, no gateway.
func TestRegisterRoutes_TriageFlow_Smoke(t *testing.T) {
	r, _ := newTestRouter(t, testConfig("/api/v1"))

	// Create session
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /sessions = %d body=%s", w.Code, w.Body.String())
	}
	var sess domain.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil || sess.ID == "" {
		t.Fatalf("bad session payload: %v %s", err, w.Body.String())
	}

	// Emergency turn
	body := fmt.Sprintf(`{"session_id":%q,"message":"I have crushing chest pain"}`, sess.ID)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat/conversational", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /chat/conversational = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		IsComplete   bool                 `json:"is_complete"`
		TriageResult *domain.TriageResult `json:"triage_result"`
		State        struct {
			Stage domain.Stage `json:"stage"`
		} `json:"conversation_state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.IsComplete || resp.TriageResult == nil || !resp.TriageResult.IsEmergency {
		t.Fatalf("expected emergency completion, got %s", w.Body.String())
	}
	if resp.State.Stage != domain.StageEmergency {
		t.Fatalf("stage = %q", resp.State.Stage)
	}

	// History now holds both utterances
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/history", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET history = %d", w.Code)
	}
	var hist struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Messages) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(hist.Messages))
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig("/api/v1")
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	r, _ := newTestRouter(t, cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// simulate https so HSTS could be eligible if middleware checks scheme
	req.URL.Scheme = "https"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func Test_repoShims_Proxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	ctx := context.Background()

	sessions := sessionRepoShim{}
	chats := chatRepoShim{}
	bookings := bookingRepoShim{}
	reports := reportRepoShim{}

	// --- session lifecycle through the shims ---
	sess, err := sessions.CreateSession(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess == nil || sess.ID == "" || sess.UserID != "u1" {
		t.Fatalf("CreateSession returned bad session: %+v", sess)
	}
	if _, err := sessions.GetSession(ctx, db, sess.ID); err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if err := sessions.TouchSession(ctx, db, sess.ID); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if n, err := sessions.CountSessions(ctx, db); err != nil || n != 1 {
		t.Fatalf("CountSessions = (%d, %v)", n, err)
	}
	if page, err := sessions.ListSessionsPage(ctx, db, 0, 10); err != nil || len(page) != 1 {
		t.Fatalf("ListSessionsPage = (%d, %v)", len(page), err)
	}

	// --- transcript + triage trail ---
	msg, err := chats.CreateMessage(ctx, db, sess.ID, "patient", "I have a headache")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := chats.CreateTriageLog(ctx, db, sess.ID, msg.ID, domain.TriageResult{
		Confidence: 0.4, SuggestedSpecialty: "Neurology",
	}); err != nil {
		t.Fatalf("CreateTriageLog: %v", err)
	}
	if msgs, err := chats.ListMessages(ctx, db, sess.ID); err != nil || len(msgs) != 1 {
		t.Fatalf("ListMessages = (%d, %v)", len(msgs), err)
	}
	if logs, err := reports.ListTriageLogs(ctx, db, sess.ID); err != nil || len(logs) != 1 {
		t.Fatalf("ListTriageLogs = (%d, %v)", len(logs), err)
	}

	// --- booking + idempotency ---
	apt, err := bookings.CreateAppointment(ctx, db, &domain.Appointment{
		SessionID:     sess.ID,
		DoctorID:      "neuro-001",
		DoctorName:    "Dr. Lisa Thompson",
		Specialty:     "Neurology",
		ScheduledTime: "October 15, 2025 10:00 AM",
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if _, err := bookings.GetAppointment(ctx, db, apt.ID); err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if err := bookings.UpdateAppointmentStatus(ctx, db, apt.ID, domain.AppointmentCancelled); err != nil {
		t.Fatalf("UpdateAppointmentStatus: %v", err)
	}
	if apts, err := reports.ListAppointmentsBySession(ctx, db, sess.ID); err != nil || len(apts) != 1 {
		t.Fatalf("ListAppointmentsBySession = (%d, %v)", len(apts), err)
	}
	if _, err := bookings.CreateIdempotency(ctx, db, "u1", sess.ID, "k1", apt.ID, http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	rec, err := bookings.GetIdempotency(ctx, db, "u1", sess.ID, "k1", time.Now().UTC())
	if err != nil || rec == nil || rec.AppointmentID != apt.ID {
		t.Fatalf("GetIdempotency = (%+v, %v)", rec, err)
	}

	// --- cleanup sweep ---
	if _, err := sessions.PurgeExpiredIdempotency(ctx, db, time.Now().UTC()); err != nil {
		t.Fatalf("PurgeExpiredIdempotency: %v", err)
	}
	if _, err := sessions.DeleteSessionsIdleSince(ctx, db, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("DeleteSessionsIdleSince: %v", err)
	}
	if err := sessions.DeleteSession(ctx, db, sess.ID); err != nil && err != gorm.ErrRecordNotFound {
		t.Fatalf("DeleteSession: %v", err)
	}
}

func TestRegisterRoutes_IdempotencyCallback_MissAndHit(t *testing.T) {
	r, db := newTestRouter(t, testConfig("/api/vX"))

	const userID = "u1"
	const key = "key-hit"
	const sessionID = "" // we'll hit /health, so no path param or header

	// --- MISS: record does not exist (executes 'rec == nil' branch) ---
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// NoMethod is expected for POST /health, but middleware ran.

	// --- seed an idempotency record so the callback returns non-nil ---
	seed := &domain.Idempotency{
		ID:            "idem-seed-1",
		UserID:        userID,
		SessionID:     sessionID,
		Key:           key,
		AppointmentID: "a-1",
		Status:        1,
		// ensure it's considered valid "now"
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(seed).Error; err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	// --- HIT: record exists (executes 'return true, nil' branch) ---
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// again, 405 is fine; goal is to drive the middleware branch.
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	r, db := newTestRouter(t, testConfig("/api/v1"))

	// Force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// Now any repo.GetIdempotency call should error → drives (err != nil) branch.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	r.ServeHTTP(w, req)

	// 405 is expected for POST /health; goal is to exercise the middleware branch.
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
