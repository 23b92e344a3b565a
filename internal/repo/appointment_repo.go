// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Appointment model.
//
// Appointments are created by the booking coordinator after a slot has been
// claimed from the directory; status transitions are the only mutation path.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// CreateAppointment persists a confirmed booking.
func CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) (*domain.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.AppointmentConfirmed
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAppointment fetches a single appointment by ID, or ErrNotFound.
func GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	var a domain.Appointment
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointmentsBySession returns a session's appointments, newest first.
func ListAppointmentsBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListAppointmentsPage returns a paginated slice over all appointments,
// newest first, for the admin surface.
func ListAppointmentsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountAppointments returns the total number of appointments.
func CountAppointments(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Count(&total).Error
	return total, err
}

// UpdateAppointmentStatus moves an appointment to a new status. Returns
// ErrNotFound when the appointment is missing.
func UpdateAppointmentStatus(ctx context.Context, db *gorm.DB, id, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
