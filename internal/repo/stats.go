// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate query backing the admin
// statistics endpoint. Each function is context-aware and safe to call from
// services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// ServiceStats is a point-in-time aggregate over the persisted tables.
type ServiceStats struct {
	Sessions       int64      `json:"sessions"`
	Messages       int64      `json:"messages"`
	TriageLogs     int64      `json:"triage_logs"`
	Emergencies    int64      `json:"emergencies"`
	Appointments   int64      `json:"appointments"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// CollectStats runs the aggregate counts in one pass. Counts come from four
// lightweight queries; LastActivityAt is the newest session UpdatedAt, or nil
// when the store is empty.
func CollectStats(ctx context.Context, db *gorm.DB) (*ServiceStats, error) {
	var s ServiceStats

	if err := db.WithContext(ctx).Model(&domain.Session{}).Count(&s.Sessions).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&domain.Message{}).Count(&s.Messages).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&domain.TriageLog{}).Count(&s.TriageLogs).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&domain.Appointment{}).Count(&s.Appointments).Error; err != nil {
		return nil, err
	}

	emergencies, err := CountEmergencies(ctx, db)
	if err != nil {
		return nil, err
	}
	s.Emergencies = emergencies

	if s.Sessions > 0 {
		// Avoid MAX() -> TEXT in SQLite; order and take the first row.
		var row struct {
			UpdatedAt time.Time
		}
		if err := db.WithContext(ctx).
			Model(&domain.Session{}).
			Select("updated_at").
			Order("updated_at DESC").
			Limit(1).
			Scan(&row).Error; err != nil {
			return nil, err
		}
		s.LastActivityAt = &row.UpdatedAt
	}

	return &s, nil
}
