// Triage chat HTTP handlers.
//
// This file exposes the two triage entry points:
//   - POST /chat                (one-shot symptom analysis)
//   - POST /chat/conversational (multi-turn intake dialogue)
//
// The conversational endpoint is stateless on the server side: the client
// echoes back the conversation_state it received on the previous turn and
// gets an updated one in the response.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/http/middleware"
	"github.com/clinova/go-triage-backend/internal/services"
)

// ChatRequest is the JSON payload for the one-shot triage endpoint.
type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Message   string `json:"message"    binding:"required" example:"I have a rash on my arm"`
}

// ChatResponse is the one-shot triage reply.
type ChatResponse struct {
	Response          string               `json:"response"`
	TriageResult      *domain.TriageResult `json:"triage_result,omitempty"`
	FollowUpQuestions []string             `json:"follow_up_questions,omitempty"`
	Crisis            bool                 `json:"crisis,omitempty"`
}

// ConverseRequest is the JSON payload for the conversational endpoint.
// ConversationState is the state returned by the previous turn; omit it to
// start a fresh dialogue.
type ConverseRequest struct {
	SessionID         string                    `json:"session_id" binding:"required"`
	Message           string                    `json:"message"    binding:"required"`
	ConversationState *domain.ConversationState `json:"conversation_state,omitempty"`
}

// ConverseResponse is one conversational turn.
type ConverseResponse struct {
	Response          string                   `json:"response"`
	ConversationState domain.ConversationState `json:"conversation_state"`
	IsComplete        bool                     `json:"is_complete"`
	TriageResult      *domain.TriageResult     `json:"triage_result,omitempty"`
	SuggestedActions  []string                 `json:"suggested_actions,omitempty"`
	Crisis            bool                     `json:"crisis,omitempty"`
}

// Chat runs the one-shot analysis of a single message.
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id and message are required")
		return
	}

	reply, err := h.chatSvc.OneShot(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		failChat(c, err)
		return
	}
	if reply.TriageResult != nil && reply.TriageResult.IsEmergency {
		middleware.CountEmergency("oneshot")
	}
	ok(c, http.StatusOK, ChatResponse{
		Response:          reply.Response,
		TriageResult:      reply.TriageResult,
		FollowUpQuestions: reply.FollowUpQuestions,
		Crisis:            reply.Crisis,
	})
}

// Converse advances the multi-turn intake dialogue by one message.
func (h *Handlers) Converse(c *gin.Context) {
	var req ConverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id and message are required")
		return
	}

	state := domain.NewConversationState()
	if req.ConversationState != nil {
		state = *req.ConversationState
	}

	reply, err := h.chatSvc.Converse(c.Request.Context(), req.SessionID, req.Message, state)
	if err != nil {
		failChat(c, err)
		return
	}
	if reply.TriageResult != nil && reply.TriageResult.IsEmergency {
		middleware.CountEmergency("conversational")
	}
	ok(c, http.StatusOK, ConverseResponse{
		Response:          reply.Response,
		ConversationState: reply.State,
		IsComplete:        reply.IsComplete,
		TriageResult:      reply.TriageResult,
		SuggestedActions:  reply.SuggestedActions,
		Crisis:            reply.Crisis,
	})
}

// failChat maps chat service errors to the HTTP error envelope.
func failChat(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSessionID):
		fail(c, http.StatusBadRequest, ErrCodeInvalidSession, "session id is malformed")
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeSessionNotFound, "session not found")
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is empty")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeTriageFailed, err.Error())
	}
}
