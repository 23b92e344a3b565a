package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// fakeReportRepo is an in-memory ReportRepo. The db handle is ignored.
type fakeReportRepo struct {
	sessions     map[string]*domain.Session
	messages     map[string][]domain.Message
	logs         map[string][]domain.TriageLog
	appointments map[string][]domain.Appointment
}

func newFakeReportRepo(sessionIDs ...string) *fakeReportRepo {
	f := &fakeReportRepo{
		sessions:     map[string]*domain.Session{},
		messages:     map[string][]domain.Message{},
		logs:         map[string][]domain.TriageLog{},
		appointments: map[string][]domain.Appointment{},
	}
	for _, id := range sessionIDs {
		f.sessions[id] = &domain.Session{ID: id}
	}
	return f
}

func (f *fakeReportRepo) GetSession(_ context.Context, _ *gorm.DB, id string) (*domain.Session, error) {
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReportRepo) ListMessages(_ context.Context, _ *gorm.DB, id string) ([]domain.Message, error) {
	return f.messages[id], nil
}

func (f *fakeReportRepo) ListTriageLogs(_ context.Context, _ *gorm.DB, id string) ([]domain.TriageLog, error) {
	return f.logs[id], nil
}

func (f *fakeReportRepo) ListAppointmentsBySession(_ context.Context, _ *gorm.DB, id string) ([]domain.Appointment, error) {
	return f.appointments[id], nil
}

func TestReport_BuildAggregatesSession(t *testing.T) {
	fr := newFakeReportRepo(testSessionID)
	fr.messages[testSessionID] = []domain.Message{
		{Sender: domain.SenderPatient, Content: "I have had chest pain since this morning"},
		{Sender: domain.SenderAssistant, Content: "emergency"},
	}
	fr.logs[testSessionID] = []domain.TriageLog{
		{Result: domain.TriageResult{IsEmergency: true, Confidence: 0.9}},
		{Result: domain.TriageResult{IsEmergency: false, SuggestedSpecialty: "Cardiology"}},
	}
	fr.appointments[testSessionID] = []domain.Appointment{{Specialty: "Cardiology"}}

	svc := NewReportService(nil, fr)
	report, err := svc.Build(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if report.MessageCount != 2 || len(report.Appointments) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	// Stop words drop, the rest is title cased, capped at eight words.
	if report.Headline != "Chest Pain Since Morning" {
		t.Fatalf("Headline = %q", report.Headline)
	}
	// Emergency flag never resets even though the latest result is routine.
	if !report.EmergencyFlagged {
		t.Fatal("EmergencyFlagged must stay set")
	}
	if report.LatestResult == nil || report.LatestResult.SuggestedSpecialty != "Cardiology" {
		t.Fatalf("LatestResult = %+v", report.LatestResult)
	}
}

func TestReport_Errors(t *testing.T) {
	svc := NewReportService(nil, newFakeReportRepo())
	ctx := context.Background()

	if _, err := svc.Build(ctx, "bad id!"); !errors.Is(err, ErrInvalidSessionID) {
		t.Fatalf("err = %v, want ErrInvalidSessionID", err)
	}
	if _, err := svc.Build(ctx, testSessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestReport_EmptySessionHasNoLatestResult(t *testing.T) {
	fr := newFakeReportRepo(testSessionID)
	svc := NewReportService(nil, fr)

	report, err := svc.Build(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.LatestResult != nil || report.EmergencyFlagged {
		t.Fatalf("empty session report should be empty: %+v", report)
	}
}
