// Package domain – conversation state.
//
// This file defines the value types carried across turns of the multi-step
// intake dialogue. The state is deliberately a plain value supplied by the
// caller on each turn and returned updated (stateless-server contract):
// transcript ownership stays with the session record, and the server keeps
// no hidden per-conversation cache.
package domain

import "time"

// Stage is the current step of the intake dialogue. Stages only advance
// forward or hold; the single exception is the emergency short-circuit,
// which jumps from any non-terminal stage straight to StageEmergency.
type Stage string

const (
	StageIntake    Stage = "intake"
	StageSpecialty Stage = "specialty"
	StageBooking   Stage = "booking"
	StageSummary   Stage = "summary"
	StageComplete  Stage = "complete"
	StageEmergency Stage = "emergency"
)

// stageRank orders the normal (non-emergency) progression.
var stageRank = map[Stage]int{
	StageIntake:    0,
	StageSpecialty: 1,
	StageBooking:   2,
	StageSummary:   3,
	StageComplete:  4,
}

// Terminal reports whether no further questions may be asked in this stage.
func (s Stage) Terminal() bool {
	return s == StageEmergency || s == StageSummary || s == StageComplete
}

// CanAdvanceTo reports whether moving from s to next is a legal transition:
// forward or hold on the normal track, or a jump to StageEmergency from any
// non-terminal stage. Once in StageEmergency the conversation never leaves it.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if s == StageEmergency {
		return next == StageEmergency
	}
	if next == StageEmergency {
		return true
	}
	cur, ok := stageRank[s]
	if !ok {
		return false
	}
	nxt, ok := stageRank[next]
	if !ok {
		return false
	}
	return nxt >= cur
}

// TriageResult is the immutable outcome of one classification event.
//
// Explanation is patient-facing; Reasoning is the internal clinical note.
// RedFlags lists the matched emergency terms when IsEmergency is true.
type TriageResult struct {
	IsEmergency        bool     `json:"is_emergency"`
	Confidence         float64  `json:"confidence"`
	Explanation        string   `json:"explanation"`
	Reasoning          string   `json:"reasoning"`
	SuggestedSpecialty string   `json:"suggested_specialty,omitempty"`
	RedFlags           []string `json:"red_flags,omitempty"`
}

// PatientProfile holds demographics collected incrementally during intake.
// All fields are optional; zero values mean "not yet collected".
type PatientProfile struct {
	Name            string   `json:"name,omitempty"`
	Age             int      `json:"age,omitempty"`
	Gender          string   `json:"gender,omitempty"`
	KnownConditions []string `json:"known_conditions,omitempty"`
	// ConditionsAsked marks that the chronic-conditions question was answered
	// (possibly with "none"), so an empty KnownConditions list is not re-asked.
	ConditionsAsked bool `json:"conditions_asked,omitempty"`
}

// IntakeSnapshot accumulates the symptom picture.
type IntakeSnapshot struct {
	Symptoms string `json:"symptoms,omitempty"`
	Duration string `json:"duration,omitempty"`
	Severity string `json:"severity,omitempty"`
	RedFlags bool   `json:"red_flags,omitempty"`
}

// TriageVerdict is the running emergency assessment for the conversation.
type TriageVerdict struct {
	IsEmergency          bool    `json:"is_emergency"`
	Reason               string  `json:"reason,omitempty"`
	Confidence           float64 `json:"confidence,omitempty"`
	RecommendedSpecialty string  `json:"recommended_specialty,omitempty"`
}

// BookingRecord is the placeholder filled when a booking is made for the
// conversation's recommended specialty.
type BookingRecord struct {
	DoctorName     string `json:"doctor_name,omitempty"`
	Specialty      string `json:"specialty,omitempty"`
	ScheduledTime  string `json:"scheduled_time,omitempty"`
	ConfirmationID string `json:"confirmation_id,omitempty"`
}

// AuditEntry records one decision made during the dialogue. The audit trail
// is append-only and never rewritten.
type AuditEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Reasoning  string    `json:"reasoning"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Exchange is one transcript entry carried inside the conversation state.
type Exchange struct {
	Role    string `json:"role"` // "patient" or "assistant"
	Content string `json:"content"`
}

// ConversationState is the full per-dialogue state passed in and out of the
// conversational entry point.
type ConversationState struct {
	Patient PatientProfile `json:"patient"`
	Intake  IntakeSnapshot `json:"intake"`
	Triage  TriageVerdict  `json:"triage"`
	Booking BookingRecord  `json:"booking"`
	Audit   []AuditEntry   `json:"audit"`
	History []Exchange     `json:"history"`
	Stage   Stage          `json:"stage"`

	TriageResult *TriageResult `json:"triage_result,omitempty"`
	IsComplete   bool          `json:"is_complete,omitempty"`
}

// NewConversationState returns the initial state for a fresh dialogue.
func NewConversationState() ConversationState {
	return ConversationState{Stage: StageIntake}
}

// AppendAudit appends one audit entry; existing entries are never edited.
func (s *ConversationState) AppendAudit(actor, action, reasoning string, confidence float64) {
	s.Audit = append(s.Audit, AuditEntry{
		Timestamp:  time.Now().UTC(),
		Actor:      actor,
		Action:     action,
		Reasoning:  reasoning,
		Confidence: confidence,
	})
}

// TranscriptText joins the full transcript, both sides, into one searchable
// blob for display and reporting. Classifiers use PatientText instead.
func (s *ConversationState) TranscriptText() string {
	n := 0
	for _, e := range s.History {
		n += len(e.Content) + 1
	}
	buf := make([]byte, 0, n)
	for i, e := range s.History {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, e.Content...)
	}
	return string(buf)
}

// PatientText joins only the patient's utterances, which is what the
// specialty classifier should score (assistant wording must not leak
// keywords into the classification).
func (s *ConversationState) PatientText() string {
	buf := make([]byte, 0, 256)
	for _, e := range s.History {
		if e.Role != SenderPatient {
			continue
		}
		if len(buf) > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, e.Content...)
	}
	return string(buf)
}
