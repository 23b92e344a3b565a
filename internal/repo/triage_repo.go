// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the TriageLog
// model. Logs are append-only, one row per classification event.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// CreateTriageLog records one classification event for a session.
func CreateTriageLog(ctx context.Context, db *gorm.DB, sessionID, messageID string, result domain.TriageResult) (*domain.TriageLog, error) {
	l := &domain.TriageLog{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		MessageID: messageID,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// ListTriageLogs returns every classification event for the session in
// chronological order.
func ListTriageLogs(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TriageLog, error) {
	var out []domain.TriageLog
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountEmergencies returns how many logged classifications were emergencies.
// SQLite stores the serialized result as JSON text, so the filter uses
// json_extract rather than a mapped column.
func CountEmergencies(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TriageLog{}).
		Where("json_extract(result, '$.is_emergency') = 1").
		Count(&total).Error
	return total, err
}
