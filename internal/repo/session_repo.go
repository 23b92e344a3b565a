// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a session is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSession inserts a new Session row. The session ID is a randomly
// generated UUID (string), and timestamps are set to UTC.
func CreateSession(ctx context.Context, db *gorm.DB, userID string) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a single session by its ID. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TouchSession bumps UpdatedAt so the age-based cleanup sweep sees the
// session as active. Returns ErrNotFound when the session is missing.
func TouchSession(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListSessionsPage returns a paginated slice of sessions ordered by last
// activity descending. Use CountSessions to obtain the total for pagination
// metadata.
func ListSessionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Session, error) {
	var out []domain.Session
	err := db.WithContext(ctx).
		Order("updated_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountSessions returns the total number of live sessions.
func CountSessions(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Session{}).
		Count(&total).Error
	return total, err
}

// DeleteSession soft-deletes a session. Messages survive for audit; GORM's
// soft delete hides the session from normal queries.
func DeleteSession(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Session{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSessionsIdleSince soft-deletes every session whose last activity is
// older than cutoff and returns how many were removed. The cleanup sweep
// calls this periodically.
func DeleteSessionsIdleSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}
