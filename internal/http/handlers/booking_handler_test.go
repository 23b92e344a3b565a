package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clinova/go-triage-backend/internal/directory"
	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/services"
)

func bookingRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.POST("/appointments", h.BookAppointment)
	r.DELETE("/appointments/:id", h.CancelAppointment)
	r.GET("/sessions/:id/appointments", h.ListSessionAppointments)
	r.GET("/specialties", h.ListSpecialties)
	r.GET("/specialties/:name/next-slot", h.NextSlot)
	r.GET("/specialists", h.ListSpecialists)
	return r
}

func TestBookAppointment(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		var got services.BookingRequest
		h := newTestHandlers(nil, nil, stubBookingSvc{
			book: func(_ context.Context, req services.BookingRequest) (*domain.Appointment, bool, error) {
				got = req
				return &domain.Appointment{
					ID:            "apt-1",
					SessionID:     req.SessionID,
					DoctorName:    "Dr. Sarah Johnson",
					Specialty:     req.Specialty,
					ScheduledTime: "October 15, 2025 10:00 AM",
					Status:        "confirmed",
				}, true, nil
			},
		}, nil, nil, nil)

		body := `{"session_id":"` + testSessionID + `","specialty":"Cardiology","notes":"chest tightness"}`
		req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "key-123")
		w := httptest.NewRecorder()
		bookingRouter(h).ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
		}
		if got.IdempotencyKey != "key-123" {
			t.Fatalf("idempotency key = %q", got.IdempotencyKey)
		}
		if got.UserID != "demo-user" {
			t.Fatalf("user id = %q", got.UserID)
		}

		var resp BookAppointmentResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Booked || resp.Appointment == nil || resp.Appointment.DoctorName != "Dr. Sarah Johnson" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("replay answers 200", func(t *testing.T) {
		h := newTestHandlers(nil, nil, stubBookingSvc{
			book: func(_ context.Context, req services.BookingRequest) (*domain.Appointment, bool, error) {
				return &domain.Appointment{ID: "apt-1", SessionID: req.SessionID}, false, nil
			},
		}, nil, nil, nil)
		body := `{"session_id":"` + testSessionID + `","specialty":"Cardiology"}`
		w := perform(bookingRouter(h), http.MethodPost, "/appointments", body)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 for replay", w.Code)
		}
	})

	t.Run("specialty falls back to triage recommendation", func(t *testing.T) {
		var got services.BookingRequest
		h := newTestHandlers(nil, nil, stubBookingSvc{
			book: func(_ context.Context, req services.BookingRequest) (*domain.Appointment, bool, error) {
				got = req
				return &domain.Appointment{ID: "apt-2"}, true, nil
			},
		}, nil, nil, nil)
		body := `{"session_id":"` + testSessionID + `","triage_result":{"suggested_specialty":"Dermatology","confidence":0.6}}`
		w := perform(bookingRouter(h), http.MethodPost, "/appointments", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d; body %s", w.Code, w.Body.String())
		}
		if got.Specialty != "Dermatology" {
			t.Fatalf("specialty = %q, want Dermatology", got.Specialty)
		}
	})

	t.Run("no availability is 200 with fallback phone", func(t *testing.T) {
		h := newTestHandlers(nil, nil, stubBookingSvc{
			book: func(context.Context, services.BookingRequest) (*domain.Appointment, bool, error) {
				return nil, false, services.ErrNoAvailability
			},
		}, nil, nil, nil)
		body := `{"session_id":"` + testSessionID + `","specialty":"Neurology"}`
		w := perform(bookingRouter(h), http.MethodPost, "/appointments", body)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp BookAppointmentResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Booked {
			t.Fatal("booked should be false")
		}
		if !strings.Contains(resp.Message, FallbackPhone) {
			t.Fatalf("message %q lacks fallback phone", resp.Message)
		}
	})

	t.Run("missing session id", func(t *testing.T) {
		h := newTestHandlers(nil, nil, nil, nil, nil, nil)
		w := perform(bookingRouter(h), http.MethodPost, "/appointments", `{"specialty":"Cardiology"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestCancelAppointmentErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", services.ErrAppointmentNotFound, http.StatusNotFound},
		{"double cancel", services.ErrAlreadyCancelled, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(nil, nil, stubBookingSvc{
				cancel: func(context.Context, string) (*domain.Appointment, error) { return nil, tc.err },
			}, nil, nil, nil)
			w := perform(bookingRouter(h), http.MethodDelete, "/appointments/apt-1", "")
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
		})
	}

	t.Run("success", func(t *testing.T) {
		h := newTestHandlers(nil, nil, nil, nil, nil, nil)
		w := perform(bookingRouter(h), http.MethodDelete, "/appointments/apt-1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var apt domain.Appointment
		_ = json.Unmarshal(w.Body.Bytes(), &apt)
		if apt.Status != "cancelled" {
			t.Fatalf("status = %q", apt.Status)
		}
	})
}

func TestListSessionAppointmentsNeverNull(t *testing.T) {
	h := newTestHandlers(nil, nil, nil, nil, nil, nil)
	w := perform(bookingRouter(h), http.MethodGet, "/sessions/"+testSessionID+"/appointments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Fatalf("body = %q, want []", body)
	}
}

func TestNextSlot(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		h := newTestHandlers(nil, nil, nil, nil, nil, nil)
		w := perform(bookingRouter(h), http.MethodGet, "/specialties/Cardiology/next-slot", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp NextSlotResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if !resp.Available || resp.NextSlot == "" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		h := newTestHandlers(nil, nil, stubBookingSvc{
			nextSlot: func(string) (string, error) { return "", services.ErrNoAvailability },
		}, nil, nil, nil)
		w := perform(bookingRouter(h), http.MethodGet, "/specialties/Cardiology/next-slot", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var resp NextSlotResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Available {
			t.Fatal("available should be false")
		}
		if !strings.Contains(resp.Message, FallbackPhone) {
			t.Fatalf("message %q lacks fallback phone", resp.Message)
		}
	})
}

func TestListSpecialists(t *testing.T) {
	var filter string
	h := newTestHandlers(nil, nil, stubBookingSvc{
		specialists: func(specialty string) []directory.Doctor {
			filter = specialty
			return []directory.Doctor{{ID: "card-001", Name: "Dr. Sarah Johnson", Specialty: "Cardiology"}}
		},
	}, nil, nil, nil)

	w := perform(bookingRouter(h), http.MethodGet, "/specialists?specialty=Cardiology", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if filter != "Cardiology" {
		t.Fatalf("filter = %q", filter)
	}
	var resp struct {
		Specialists []directory.Doctor `json:"specialists"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Specialists) != 1 || resp.Specialists[0].ID != "card-001" {
		t.Fatalf("unexpected specialists: %+v", resp.Specialists)
	}
}

func TestListSpecialists_FreeTextQuery(t *testing.T) {
	var gotQuery string
	var gotLimit int
	h := newTestHandlers(nil, nil, stubBookingSvc{
		search: func(q string, k int) []directory.Doctor {
			gotQuery, gotLimit = q, k
			return []directory.Doctor{{ID: "derm-001", Name: "Dr. Sarah Mitchell", Specialty: "Dermatology"}}
		},
		specialists: func(string) []directory.Doctor {
			t.Fatal("q param should take the search path, not the filter path")
			return nil
		},
	}, nil, nil, nil)

	w := perform(bookingRouter(h), http.MethodGet, "/specialists?q=skin+rash&limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotQuery != "skin rash" || gotLimit != 2 {
		t.Fatalf("search called with (%q, %d)", gotQuery, gotLimit)
	}
	var resp struct {
		Specialists []directory.Doctor `json:"specialists"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Specialists) != 1 || resp.Specialists[0].ID != "derm-001" {
		t.Fatalf("unexpected specialists: %+v", resp.Specialists)
	}
}
