// Session HTTP handlers.
//
// This file exposes REST endpoints for session resources:
//   - POST   /sessions              (create)
//   - GET    /sessions/{id}         (fetch)
//   - GET    /sessions/{id}/history (transcript)
//   - GET    /sessions/{id}/report  (intake report)
//   - DELETE /sessions/{id}         (remove)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/services"
)

// CreateSessionRequest is the JSON payload for creating a session. All
// fields are optional; anonymous intake is the common case.
type CreateSessionRequest struct {
	UserID string `json:"user_id,omitempty" example:"user123"`
}

// SessionHistoryResponse wraps a session transcript.
type SessionHistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
}

// CreateSession starts a new intake session and returns the resource.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	// An empty body is fine; only malformed JSON is rejected.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	sess, err := h.sessionSvc.Create(c.Request.Context(), req.UserID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, sess)
}

// GetSession fetches one session by id.
func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.sessionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failSession(c, err)
		return
	}
	ok(c, http.StatusOK, sess)
}

// GetSessionHistory returns the session transcript in arrival order.
func (h *Handlers) GetSessionHistory(c *gin.Context) {
	id := c.Param("id")
	msgs, err := h.sessionSvc.History(c.Request.Context(), id)
	if err != nil {
		failSession(c, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	ok(c, http.StatusOK, SessionHistoryResponse{SessionID: id, Messages: msgs})
}

// GetSessionReport assembles the intake report for one session.
func (h *Handlers) GetSessionReport(c *gin.Context) {
	report, err := h.reportSvc.Build(c.Request.Context(), c.Param("id"))
	if err != nil {
		failSession(c, err)
		return
	}
	ok(c, http.StatusOK, report)
}

// DeleteSession removes a session.
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.sessionSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failSession(c, err)
		return
	}
	noContent(c)
}

// failSession maps session service errors to the HTTP error envelope.
// Malformed ids are a client error, unknown ids are not-found, everything
// else is internal.
func failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidSessionID):
		fail(c, http.StatusBadRequest, ErrCodeInvalidSession, "session id is malformed")
	case errors.Is(err, services.ErrSessionNotFound):
		fail(c, http.StatusNotFound, ErrCodeSessionNotFound, "session not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
