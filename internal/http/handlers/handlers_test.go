package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinova/go-triage-backend/internal/directory"
	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/gateway"
	"github.com/clinova/go-triage-backend/internal/repo"
	"github.com/clinova/go-triage-backend/internal/services"
)

const testSessionID = "141add05-4415-4938-b5a1-17e0d3171aff"

func init() { gin.SetMode(gin.TestMode) }

// ---------- service stubs (func fields, nil means a sane default) ----------

type stubSessionSvc struct {
	create   func(context.Context, string) (*domain.Session, error)
	get      func(context.Context, string) (*domain.Session, error)
	history  func(context.Context, string) ([]domain.Message, error)
	listPage func(context.Context, int, int) ([]domain.Session, int64, error)
	del      func(context.Context, string) error
	cleanup  func(context.Context, time.Duration) (int64, error)
}

func (s stubSessionSvc) Create(ctx context.Context, userID string) (*domain.Session, error) {
	if s.create != nil {
		return s.create(ctx, userID)
	}
	return &domain.Session{ID: testSessionID, UserID: userID}, nil
}

func (s stubSessionSvc) Get(ctx context.Context, id string) (*domain.Session, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return &domain.Session{ID: id}, nil
}

func (s stubSessionSvc) History(ctx context.Context, id string) ([]domain.Message, error) {
	if s.history != nil {
		return s.history(ctx, id)
	}
	return nil, nil
}

func (s stubSessionSvc) ListPage(ctx context.Context, page, pageSize int) ([]domain.Session, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubSessionSvc) Delete(ctx context.Context, id string) error {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

func (s stubSessionSvc) CleanupIdle(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s.cleanup != nil {
		return s.cleanup(ctx, olderThan)
	}
	return 0, nil
}

type stubChatSvc struct {
	oneShot  func(context.Context, string, string) (*services.OneShotReply, error)
	converse func(context.Context, string, string, domain.ConversationState) (*services.ConversationReply, error)
}

func (s stubChatSvc) OneShot(ctx context.Context, sessionID, message string) (*services.OneShotReply, error) {
	if s.oneShot != nil {
		return s.oneShot(ctx, sessionID, message)
	}
	return &services.OneShotReply{Response: "ok"}, nil
}

func (s stubChatSvc) Converse(ctx context.Context, sessionID, message string, state domain.ConversationState) (*services.ConversationReply, error) {
	if s.converse != nil {
		return s.converse(ctx, sessionID, message, state)
	}
	return &services.ConversationReply{Response: "ok", State: state}, nil
}

type stubBookingSvc struct {
	book        func(context.Context, services.BookingRequest) (*domain.Appointment, bool, error)
	cancel      func(context.Context, string) (*domain.Appointment, error)
	bySession   func(context.Context, string) ([]domain.Appointment, error)
	nextSlot    func(string) (string, error)
	specialists func(string) []directory.Doctor
	specialties func() []string
	search      func(string, int) []directory.Doctor
}

func (s stubBookingSvc) Book(ctx context.Context, req services.BookingRequest) (*domain.Appointment, bool, error) {
	if s.book != nil {
		return s.book(ctx, req)
	}
	return &domain.Appointment{ID: "a1", SessionID: req.SessionID}, true, nil
}

func (s stubBookingSvc) Cancel(ctx context.Context, id string) (*domain.Appointment, error) {
	if s.cancel != nil {
		return s.cancel(ctx, id)
	}
	return &domain.Appointment{ID: id, Status: "cancelled"}, nil
}

func (s stubBookingSvc) BySession(ctx context.Context, sessionID string) ([]domain.Appointment, error) {
	if s.bySession != nil {
		return s.bySession(ctx, sessionID)
	}
	return nil, nil
}

func (s stubBookingSvc) NextSlot(specialty string) (string, error) {
	if s.nextSlot != nil {
		return s.nextSlot(specialty)
	}
	return "October 15, 2025 10:00 AM", nil
}

func (s stubBookingSvc) Specialists(specialty string) []directory.Doctor {
	if s.specialists != nil {
		return s.specialists(specialty)
	}
	return nil
}

func (s stubBookingSvc) Specialties() []string {
	if s.specialties != nil {
		return s.specialties()
	}
	return nil
}

func (s stubBookingSvc) Search(query string, k int) []directory.Doctor {
	if s.search != nil {
		return s.search(query, k)
	}
	return nil
}

type stubReportSvc struct {
	build func(context.Context, string) (*services.IntakeReport, error)
}

func (s stubReportSvc) Build(ctx context.Context, sessionID string) (*services.IntakeReport, error) {
	if s.build != nil {
		return s.build(ctx, sessionID)
	}
	return &services.IntakeReport{Session: &domain.Session{ID: sessionID}}, nil
}

type stubAdminSvc struct {
	stats    func(context.Context) (*repo.ServiceStats, error)
	dirStats func() directory.Stats
}

func (s stubAdminSvc) Stats(ctx context.Context) (*repo.ServiceStats, error) {
	if s.stats != nil {
		return s.stats(ctx)
	}
	return &repo.ServiceStats{}, nil
}

func (s stubAdminSvc) DirectoryStats() directory.Stats {
	if s.dirStats != nil {
		return s.dirStats()
	}
	return directory.Stats{}
}

type stubMessenger struct {
	send func(context.Context, string, string) error
	list func(context.Context, string, int) ([]gateway.Message, error)
}

func (s stubMessenger) SendText(ctx context.Context, conversationID, text string) error {
	if s.send != nil {
		return s.send(ctx, conversationID, text)
	}
	return nil
}

func (s stubMessenger) ListMessages(ctx context.Context, conversationID string, limit int) ([]gateway.Message, error) {
	if s.list != nil {
		return s.list(ctx, conversationID, limit)
	}
	return nil, nil
}

// newTestHandlers wires stubs into a Handlers value. Callers override
// individual stubs as needed.
func newTestHandlers(sess SessionService, chat ChatService, book BookingService, rep ReportService, admin AdminService, msg Messenger) *Handlers {
	if sess == nil {
		sess = stubSessionSvc{}
	}
	if chat == nil {
		chat = stubChatSvc{}
	}
	if book == nil {
		book = stubBookingSvc{}
	}
	if rep == nil {
		rep = stubReportSvc{}
	}
	if admin == nil {
		admin = stubAdminSvc{}
	}
	return New(sess, chat, book, rep, admin, msg)
}

func perform(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestUserIDFallbacks(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if got := userID(c); got != "demo-user" {
		t.Fatalf("default user id = %q, want demo-user", got)
	}

	c.Request.Header.Set("X-User-ID", "alice")
	if got := userID(c); got != "alice" {
		t.Fatalf("header user id = %q, want alice", got)
	}

	c.Set("userID", "bob")
	if got := userID(c); got != "bob" {
		t.Fatalf("context user id = %q, want bob", got)
	}
}

func TestClampPagination(t *testing.T) {
	cases := []struct {
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"", 1, 20},
		{"?page=3&page_size=50", 3, 50},
		{"?page=0&page_size=0", 1, 1},
		{"?page=-2&page_size=9999", 1, 100},
		{"?page=abc&page_size=xyz", 1, 20},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)

		page, size := clampPagination(c)
		if page != tc.wantPage || size != tc.wantPageSize {
			t.Errorf("clampPagination(%q) = (%d, %d), want (%d, %d)",
				tc.query, page, size, tc.wantPage, tc.wantPageSize)
		}
	}
}
