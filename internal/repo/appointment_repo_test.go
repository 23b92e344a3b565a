package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/clinova/go-triage-backend/internal/domain"
)

func TestCreateAppointment_DefaultsAndRoundtrip(t *testing.T) {
	db := newRepoDB(t, &domain.Appointment{})
	ctx := context.Background()

	a, err := CreateAppointment(ctx, db, &domain.Appointment{
		SessionID:     "sess-1",
		DoctorID:      "card-001",
		DoctorName:    "Dr. Sarah Johnson",
		Specialty:     "Cardiology",
		ScheduledTime: "October 9, 2025 10:00 AM",
		TriageResult: &domain.TriageResult{
			SuggestedSpecialty: "Cardiology",
			Confidence:         0.6,
		},
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if a.ID == "" {
		t.Fatal("ID not generated")
	}
	if a.Status != domain.AppointmentConfirmed {
		t.Fatalf("Status = %q, want default confirmed", a.Status)
	}

	got, err := GetAppointment(ctx, db, a.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.TriageResult == nil || got.TriageResult.SuggestedSpecialty != "Cardiology" {
		t.Fatalf("triage snapshot lost: %+v", got.TriageResult)
	}
}

func TestGetAppointment_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Appointment{})
	if _, err := GetAppointment(context.Background(), db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateAppointmentStatus(t *testing.T) {
	db := newRepoDB(t, &domain.Appointment{})
	ctx := context.Background()

	a, err := CreateAppointment(ctx, db, &domain.Appointment{
		SessionID: "sess-1", DoctorID: "d", DoctorName: "Dr. D",
		Specialty: "Neurology", ScheduledTime: "October 10, 2025 1:00 PM",
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	if err := UpdateAppointmentStatus(ctx, db, a.ID, domain.AppointmentCancelled); err != nil {
		t.Fatalf("UpdateAppointmentStatus: %v", err)
	}
	got, _ := GetAppointment(ctx, db, a.ID)
	if got.Status != domain.AppointmentCancelled {
		t.Fatalf("Status = %q, want cancelled", got.Status)
	}

	if err := UpdateAppointmentStatus(ctx, db, "missing", domain.AppointmentCancelled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err = %v, want ErrNotFound", err)
	}
}

func TestListAppointmentsBySession(t *testing.T) {
	db := newRepoDB(t, &domain.Appointment{})
	ctx := context.Background()

	for _, sess := range []string{"s1", "s1", "s2"} {
		if _, err := CreateAppointment(ctx, db, &domain.Appointment{
			SessionID: sess, DoctorID: "d", DoctorName: "Dr. D",
			Specialty: "ENT", ScheduledTime: "October 9, 2025 9:00 AM",
		}); err != nil {
			t.Fatalf("CreateAppointment: %v", err)
		}
	}

	got, err := ListAppointmentsBySession(ctx, db, "s1")
	if err != nil {
		t.Fatalf("ListAppointmentsBySession: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	total, err := CountAppointments(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("CountAppointments = %d, %v", total, err)
	}
}
