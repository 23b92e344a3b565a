// Package services – ChatService
//
// This file implements the ChatService, the orchestration layer between the
// HTTP handlers and the triage engine. It owns the safety order of a turn:
// input sanitization, self-harm interception, then either the one-shot
// analyzer or the conversational state machine. Every classification event is
// persisted as a triage log alongside the transcript.
//
// Turns for the same session are serialized through a keyed mutex so each
// reply reflects all earlier messages even under concurrent clients.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry the session id and emergency flag.
package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/syncutil"
	"github.com/clinova/go-triage-backend/internal/triage"
)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	// GetSession fetches a session by ID.
	GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error)

	// TouchSession bumps the session's last-activity timestamp.
	TouchSession(ctx context.Context, db *gorm.DB, id string) error

	// CreateMessage appends one message to the transcript.
	CreateMessage(ctx context.Context, db *gorm.DB, sessionID, sender, content string) (*domain.Message, error)

	// ListMessages returns the transcript in insertion order.
	ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error)

	// CreateTriageLog records one classification event.
	CreateTriageLog(ctx context.Context, db *gorm.DB, sessionID, messageID string, result domain.TriageResult) (*domain.TriageLog, error)
}

// OneShotReply is the outcome of a single-message analysis.
type OneShotReply struct {
	Response          string
	TriageResult      *domain.TriageResult
	FollowUpQuestions []string
	Crisis            bool
}

// ConversationReply is the outcome of one conversational turn.
type ConversationReply struct {
	Response         string
	State            domain.ConversationState
	IsComplete       bool
	TriageResult     *domain.TriageResult
	SuggestedActions []string
	Crisis           bool
}

// ChatService coordinates a triage turn end to end.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the persistence contract used by this service.
	Repo ChatRepo
	// Machine drives the conversational intake dialogue.
	Machine *triage.StateMachine
	// MaxPromptLen caps inbound message length in runes.
	MaxPromptLen int

	locks *syncutil.KeyedMutex
}

// NewChatService constructs a ChatService with sane input limits.
func NewChatService(db *gorm.DB, r ChatRepo, machine *triage.StateMachine) *ChatService {
	return &ChatService{
		DB:           db,
		Repo:         r,
		Machine:      machine,
		MaxPromptLen: 2000,
		locks:        syncutil.NewKeyedMutex(),
	}
}

// OneShot runs a single-pass analysis of one message: sanitize, intercept
// self-harm, classify, persist. There is no dialogue state; follow-up
// questions are canned per specialty.
func (s *ChatService) OneShot(ctx context.Context, sessionID, message string) (*OneShotReply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "OneShot",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	clean, err := s.prepare(ctx, sessionID, message)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(sessionID)
	defer s.locks.Unlock(sessionID)

	msg, err := s.Repo.CreateMessage(ctx, s.DB, sessionID, domain.SenderPatient, clean)
	if err != nil {
		return nil, err
	}

	// Self-harm intercepts before any triage runs. No error path below may
	// suppress this response.
	if triage.ContainsSelfHarm(clean) {
		if _, err := s.Repo.CreateMessage(ctx, s.DB, sessionID, domain.SenderAssistant, triage.CrisisMessage); err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Bool("crisis", true))
		return &OneShotReply{Response: triage.CrisisMessage, Crisis: true}, nil
	}

	result := triage.AnalyzeSymptoms(clean)
	if _, err := s.Repo.CreateTriageLog(ctx, s.DB, sessionID, msg.ID, result); err != nil {
		return nil, err
	}

	response := result.Explanation
	var followUps []string
	if result.IsEmergency {
		response = triage.EmergencyMessage
	} else {
		followUps = triage.FollowUpQuestions(result.SuggestedSpecialty)
	}
	if _, err := s.Repo.CreateMessage(ctx, s.DB, sessionID, domain.SenderAssistant, response); err != nil {
		return nil, err
	}
	_ = s.Repo.TouchSession(ctx, s.DB, sessionID)

	span.SetAttributes(attribute.Bool("emergency", result.IsEmergency))
	return &OneShotReply{
		Response:          response,
		TriageResult:      &result,
		FollowUpQuestions: followUps,
	}, nil
}

// Converse advances the multi-turn intake dialogue by one patient message.
// The caller supplies the conversation state from the previous turn (or the
// zero state for a fresh dialogue) and receives it back updated.
func (s *ChatService) Converse(ctx context.Context, sessionID, message string, state domain.ConversationState) (*ConversationReply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Converse",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	clean, err := s.prepare(ctx, sessionID, message)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(sessionID)
	defer s.locks.Unlock(sessionID)

	msg, err := s.Repo.CreateMessage(ctx, s.DB, sessionID, domain.SenderPatient, clean)
	if err != nil {
		return nil, err
	}

	// Self-harm intercepts before the state machine sees the message. The
	// dialogue state is returned untouched so the patient can continue after
	// reading the crisis resources.
	if triage.ContainsSelfHarm(clean) {
		if _, err := s.Repo.CreateMessage(ctx, s.DB, sessionID, domain.SenderAssistant, triage.CrisisMessage); err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Bool("crisis", true))
		return &ConversationReply{
			Response: triage.CrisisMessage,
			State:    state,
			Crisis:   true,
		}, nil
	}

	turn := s.Machine.ProcessMessage(ctx, clean, state)

	if _, err := s.Repo.CreateMessage(ctx, s.DB, sessionID, domain.SenderAssistant, turn.Response); err != nil {
		return nil, err
	}
	if turn.TriageResult != nil {
		if _, err := s.Repo.CreateTriageLog(ctx, s.DB, sessionID, msg.ID, *turn.TriageResult); err != nil {
			return nil, err
		}
	}
	_ = s.Repo.TouchSession(ctx, s.DB, sessionID)

	span.SetAttributes(
		attribute.Bool("complete", turn.IsComplete),
		attribute.String("stage", string(turn.NewState.Stage)),
	)
	return &ConversationReply{
		Response:         turn.Response,
		State:            turn.NewState,
		IsComplete:       turn.IsComplete,
		TriageResult:     turn.TriageResult,
		SuggestedActions: turn.SuggestedActions,
	}, nil
}

// prepare validates the session id, confirms the session exists, and
// sanitizes the inbound message. It returns the cleaned text.
func (s *ChatService) prepare(ctx context.Context, sessionID, message string) (string, error) {
	if !triage.ValidSessionID(sessionID) {
		return "", ErrInvalidSessionID
	}
	if _, err := s.Repo.GetSession(ctx, s.DB, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	if s.MaxPromptLen > 0 && utf8.RuneCountInString(message) > s.MaxPromptLen {
		return "", ErrTooLong
	}
	clean := triage.SanitizeInput(message)
	if clean == "" {
		return "", ErrEmptyMessage
	}
	return clean, nil
}
