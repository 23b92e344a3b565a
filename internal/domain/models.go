// Package domain defines the persistence models for chat sessions, messages,
// triage logs, and appointments. These types are mapped with GORM and form
// the core data layer of the triage backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Sender tags for Message rows.
const (
	SenderPatient   = "patient"
	SenderAssistant = "assistant"
)

// Session represents one patient's chat interaction. A session owns an
// ordered sequence of messages (insertion order is the conversational
// history) and a trail of triage logs.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: optional identifier of the owning patient account; indexed.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM. UpdatedAt moves on
//     every message append and drives the age-based cleanup sweep.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Session struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id,omitempty" gorm:"type:varchar(64);index:idx_user_sessions"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Message represents a single utterance within a session. Messages are
// immutable once created and append-only within a session; the state machine
// reasons over their arrival order.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SessionID: foreign key to the owning session (indexed).
//   - Sender: "patient" or "assistant" (enforced by DB constraint).
//   - Content: full text content of the message.
//   - CreatedAt: timestamp managed by GORM, part of the ordering index.
type Message struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string         `json:"session_id" gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Sender    string         `json:"sender"     gorm:"type:varchar(16);not null;check:sender IN ('patient','assistant')"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_session_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Session is the parent conversation. Messages are cascade-deleted
	// if their session is removed.
	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// TriageLog records one classification event: which message triggered it and
// the TriageResult it produced. Rows are append-only, one per event.
type TriageLog struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string         `json:"session_id" gorm:"type:char(36);not null;index"`
	MessageID string         `json:"message_id" gorm:"type:char(36);not null"`
	Result    TriageResult   `json:"result"     gorm:"serializer:json"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for TriageLog.
func (TriageLog) TableName() string { return "triage_logs" }

// Appointment status values. Confirmed to cancelled is the only transition
// the backend performs itself; the others are accepted from callers.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
	AppointmentCompleted = "completed"
)

// Appointment is a booked specialist slot tied to a session. Created by the
// booking coordinator; status transitions are the only mutation path.
type Appointment struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	SessionID     string         `json:"session_id"     gorm:"type:char(36);not null;index"`
	UserID        string         `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	DoctorID      string         `json:"doctor_id"      gorm:"type:varchar(32);not null"`
	DoctorName    string         `json:"doctor_name"    gorm:"type:varchar(128);not null"`
	Specialty     string         `json:"specialty"      gorm:"type:varchar(64);not null"`
	ScheduledTime string         `json:"scheduled_time" gorm:"type:varchar(64);not null"`
	Status        string         `json:"status"         gorm:"type:varchar(16);not null;check:status IN ('pending','confirmed','cancelled','completed')"`
	Notes         string         `json:"notes,omitempty"  gorm:"type:text"`
	TriageResult  *TriageResult  `json:"triage_result,omitempty" gorm:"serializer:json"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// Idempotency represents a recorded result of a previously processed booking
// request, keyed by (user_id, session_id, key). It enables safe retries for
// the booking endpoint by short-circuiting replays instead of re-executing
// the slot allocation.
type Idempotency struct {
	ID            string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_session_key,priority:1"`
	SessionID     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_session_key,priority:2"`
	Key           string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_session_key,priority:3"`
	AppointmentID string    `gorm:"type:TEXT NOT NULL"`
	Status        int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt     time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
