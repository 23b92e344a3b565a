// Booking HTTP handlers.
//
// This file exposes REST endpoints for appointments and the doctor
// directory:
//   - POST   /appointments                      (book, idempotent via header)
//   - DELETE /appointments/{id}                 (cancel)
//   - GET    /sessions/{id}/appointments        (session's bookings)
//   - GET    /specialties                       (directory specialties)
//   - GET    /specialties/{name}/next-slot      (earliest availability)
//   - GET    /specialists                       (doctor listing)
//
// No availability is not an error: the endpoint answers 200 with the
// fallback phone line so patients always get a next step.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/http/middleware"
	"github.com/clinova/go-triage-backend/internal/services"
	"github.com/clinova/go-triage-backend/internal/utils"
)

// FallbackPhone is offered when no slot can be booked online.
const FallbackPhone = "(216) 444-2200"

// BookAppointmentRequest is the JSON payload for booking.
type BookAppointmentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	// Specialty to book; falls back to the triage recommendation when empty.
	Specialty string               `json:"specialty,omitempty"`
	Notes     string               `json:"notes,omitempty"`
	Triage    *domain.TriageResult `json:"triage_result,omitempty"`
}

// BookAppointmentResponse reports the booking outcome. Booked is false when
// no slot was available; Message then carries the fallback instructions.
type BookAppointmentResponse struct {
	Booked      bool                `json:"booked"`
	Appointment *domain.Appointment `json:"appointment,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// NextSlotResponse reports the earliest availability for a specialty.
type NextSlotResponse struct {
	Specialty string `json:"specialty"`
	Available bool   `json:"available"`
	NextSlot  string `json:"next_slot,omitempty"`
	Message   string `json:"message,omitempty"`
}

// BookAppointment books the earliest open slot in a specialty. An optional
// Idempotency-Key header makes retries safe: a replayed key returns the
// original appointment instead of claiming another slot.
func (h *Handlers) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id is required")
		return
	}

	specialty := strings.TrimSpace(req.Specialty)
	if specialty == "" && req.Triage != nil {
		specialty = req.Triage.SuggestedSpecialty
	}

	apt, created, err := h.bookingSvc.Book(c.Request.Context(), services.BookingRequest{
		SessionID:      req.SessionID,
		UserID:         userID(c),
		Specialty:      specialty,
		Notes:          req.Notes,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
		TriageResult:   req.Triage,
	})
	if err != nil {
		if errors.Is(err, services.ErrNoAvailability) {
			middleware.CountBooking("no_availability")
			ok(c, http.StatusOK, BookAppointmentResponse{
				Booked:  false,
				Message: "No appointments are currently available for " + specialty + ". Please call " + FallbackPhone + " to schedule with our staff.",
			})
			return
		}
		failBooking(c, err)
		return
	}

	status := http.StatusCreated
	outcome := "booked"
	if !created {
		status = http.StatusOK // idempotent replay
		outcome = "replayed"
	}
	middleware.CountBooking(outcome)
	ok(c, status, BookAppointmentResponse{
		Booked:      true,
		Appointment: apt,
		Message:     "Appointment confirmed with " + apt.DoctorName + " on " + apt.ScheduledTime + ".",
	})
}

// CancelAppointment cancels a booking and frees its slot.
func (h *Handlers) CancelAppointment(c *gin.Context) {
	apt, err := h.bookingSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		failBooking(c, err)
		return
	}
	ok(c, http.StatusOK, apt)
}

// ListSessionAppointments returns a session's bookings, newest first.
func (h *Handlers) ListSessionAppointments(c *gin.Context) {
	apts, err := h.bookingSvc.BySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		failBooking(c, err)
		return
	}
	if apts == nil {
		apts = []domain.Appointment{}
	}
	ok(c, http.StatusOK, apts)
}

// ListSpecialties returns the distinct specialties on offer.
func (h *Handlers) ListSpecialties(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"specialties": h.bookingSvc.Specialties()})
}

// NextSlot returns the earliest open slot for a specialty.
func (h *Handlers) NextSlot(c *gin.Context) {
	specialty := c.Param("name")

	slot, err := h.bookingSvc.NextSlot(specialty)
	if err != nil {
		if errors.Is(err, services.ErrNoAvailability) {
			ok(c, http.StatusOK, NextSlotResponse{
				Specialty: specialty,
				Available: false,
				Message:   "No slots available. Please call " + FallbackPhone + ".",
			})
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, NextSlotResponse{Specialty: specialty, Available: true, NextSlot: slot})
}

// ListSpecialists returns the doctor directory. A free-text q parameter
// ("skin rash", "chest pain") ranks doctors by profile relevance; otherwise
// the specialty parameter filters by exact specialty.
func (h *Handlers) ListSpecialists(c *gin.Context) {
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		limit := utils.AtoiDefault(c.Query("limit"), 5)
		ok(c, http.StatusOK, gin.H{"specialists": h.bookingSvc.Search(q, limit)})
		return
	}
	docs := h.bookingSvc.Specialists(strings.TrimSpace(c.Query("specialty")))
	ok(c, http.StatusOK, gin.H{"specialists": docs})
}

// failBooking maps booking service errors to the HTTP error envelope.
func failBooking(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSessionID):
		fail(c, http.StatusBadRequest, ErrCodeInvalidSession, "session id is malformed")
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeSessionNotFound, "session not found")
	case errors.Is(err, services.ErrMissingSpecialty):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "specialty is required when no triage recommendation exists")
	case errors.Is(err, services.ErrAppointmentNotFound):
		fail(c, http.StatusNotFound, ErrCodeAppointmentNotFound, "appointment not found")
	case errors.Is(err, services.ErrAlreadyCancelled):
		fail(c, http.StatusConflict, ErrCodeAlreadyCancelled, "appointment already cancelled")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeBookingFailed, err.Error())
	}
}
