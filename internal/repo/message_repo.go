// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model.
//
// Messages are append-only within a session: there is no update path, and
// listing always returns insertion order because the conversation state
// machine reasons over arrival order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// CreateMessage appends a message to a session. Sender must be one of the
// domain sender constants; the DB check constraint rejects anything else.
func CreateMessage(ctx context.Context, db *gorm.DB, sessionID, sender, content string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns every message in the session in insertion order.
// An unknown session yields an empty slice, not an error; existence checks
// belong to the session repository.
func ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages in the session.
func CountMessages(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}
