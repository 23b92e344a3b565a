// Package services – ReportService
//
// This file implements the intake report: a point-in-time summary of one
// session assembled from the transcript, the triage log trail, and any
// appointments. Reports are computed on demand, never stored.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/triage"
)

// ReportRepo defines the repository contract required by ReportService.
type ReportRepo interface {
	// GetSession fetches a session by ID.
	GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error)

	// ListMessages returns the transcript in insertion order.
	ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error)

	// ListTriageLogs returns the classification trail in order.
	ListTriageLogs(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TriageLog, error)

	// ListAppointmentsBySession returns a session's appointments.
	ListAppointmentsBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Appointment, error)
}

// IntakeReport is the assembled session summary.
type IntakeReport struct {
	Session *domain.Session `json:"session"`
	// Headline is a compact title derived from the first patient message,
	// e.g. "Crushing Chest Pain Since Morning". Empty when no patient
	// message exists yet.
	Headline     string `json:"headline,omitempty"`
	MessageCount int    `json:"message_count"`
	Transcript   []domain.Message     `json:"transcript"`
	TriageLogs   []domain.TriageLog   `json:"triage_logs"`
	Appointments []domain.Appointment `json:"appointments"`
	// LatestResult is the most recent classification, or nil when the
	// session was never triaged.
	LatestResult *domain.TriageResult `json:"latest_result,omitempty"`
	// EmergencyFlagged reports whether any classification in the trail was
	// an emergency. It never resets once set.
	EmergencyFlagged bool      `json:"emergency_flagged"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// ReportService assembles intake reports.
type ReportService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the persistence contract used by this service.
	Repo ReportRepo
	// HeadlineLocale controls title casing of the report headline.
	HeadlineLocale language.Tag
}

// NewReportService constructs a ReportService.
func NewReportService(db *gorm.DB, r ReportRepo) *ReportService {
	return &ReportService{DB: db, Repo: r, HeadlineLocale: language.Und}
}

// LocaleOrDefault returns the configured casing locale, or English if unset.
func (s *ReportService) LocaleOrDefault() language.Tag {
	if s.HeadlineLocale == language.Und {
		return language.English
	}
	return s.HeadlineLocale
}

// Build assembles the report for one session.
func (s *ReportService) Build(ctx context.Context, sessionID string) (*IntakeReport, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "Build",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	if !triage.ValidSessionID(sessionID) {
		return nil, ErrInvalidSessionID
	}
	sess, err := s.Repo.GetSession(ctx, s.DB, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	msgs, err := s.Repo.ListMessages(ctx, s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	logs, err := s.Repo.ListTriageLogs(ctx, s.DB, sessionID)
	if err != nil {
		return nil, err
	}
	apts, err := s.Repo.ListAppointmentsBySession(ctx, s.DB, sessionID)
	if err != nil {
		return nil, err
	}

	report := &IntakeReport{
		Session:      sess,
		Headline:     s.headline(msgs),
		MessageCount: len(msgs),
		Transcript:   msgs,
		TriageLogs:   logs,
		Appointments: apts,
		GeneratedAt:  time.Now().UTC(),
	}
	for i := range logs {
		if logs[i].Result.IsEmergency {
			report.EmergencyFlagged = true
		}
	}
	if len(logs) > 0 {
		last := logs[len(logs)-1].Result
		report.LatestResult = &last
	}

	span.SetAttributes(attribute.Bool("emergency", report.EmergencyFlagged))
	return report, nil
}

// --- Headline helpers ---

// Extract Unicode letters with optional trailing numbers.
var headlineWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact headlines.
var headlineStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"i": {}, "my": {}, "me": {}, "have": {}, "has": {}, "had": {}, "am": {}, "been": {},
	"feel": {}, "feeling": {}, "got": {}, "get": {}, "really": {}, "very": {}, "just": {},
}

// headline derives a compact title from the first patient message: lowercase
// tokenization, stop-word removal, title casing, at most eight words.
func (s *ReportService) headline(msgs []domain.Message) string {
	var first string
	for i := range msgs {
		if msgs[i].Sender == domain.SenderPatient {
			first = msgs[i].Content
			break
		}
	}
	toks := headlineWordRE.FindAllString(strings.ToLower(first), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(s.LocaleOrDefault())
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := headlineStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	return strings.Join(out, " ")
}
