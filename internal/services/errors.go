// Package services defines the business logic for sessions, triage
// conversations, and appointment booking. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Session-related errors.
var (
	// ErrSessionNotFound indicates that the requested session does not exist.
	// A well-formed but unknown id is this error, not ErrInvalidSessionID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID is returned when the supplied id is not a token
	// this service could have issued.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Message-related errors.
var (
	// ErrEmptyMessage is returned when a chat request contains no usable
	// text after sanitization.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a chat message exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message too long")
)

// Booking-related errors.
var (
	// ErrNoAvailability indicates that no doctor in the requested specialty
	// has an open slot. This is an availability outcome, not a failure.
	ErrNoAvailability = errors.New("no available appointments for specialty")

	// ErrAppointmentNotFound indicates that the requested appointment does
	// not exist.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrAlreadyCancelled is returned when cancelling an appointment that is
	// already cancelled.
	ErrAlreadyCancelled = errors.New("appointment already cancelled")

	// ErrMissingSpecialty is returned when a booking request names no
	// specialty and the session has no triage recommendation to fall back on.
	ErrMissingSpecialty = errors.New("specialty is required")
)
