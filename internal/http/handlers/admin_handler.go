// Admin and gateway HTTP handlers.
//
// This file exposes the operational surface:
//   - GET  /admin/stats       (store and directory aggregates)
//   - GET  /admin/sessions    (session listing, paginated)
//   - POST /admin/cleanup     (manual idle-session sweep)
//   - POST /whatsapp/send     (notify a doctor conversation)
//   - GET  /whatsapp/messages (read a doctor conversation)
//
// The gateway endpoints degrade to 503 when no bridge is configured so the
// rest of the API keeps working without one.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinova/go-triage-backend/internal/domain"
	"github.com/clinova/go-triage-backend/internal/utils"
)

// AdminStatsResponse combines persisted aggregates with the live directory
// summary.
type AdminStatsResponse struct {
	Store     any `json:"store"`
	Directory any `json:"directory"`
}

// CleanupRequest is the optional JSON payload for the cleanup endpoint.
// Hours overrides the configured idle threshold when positive.
type CleanupRequest struct {
	Hours int `json:"hours,omitempty" example:"48"`
}

// CleanupResponse reports a manual sweep outcome.
type CleanupResponse struct {
	SessionsRemoved int64 `json:"sessions_removed"`
}

// SendMessageRequest is the JSON payload for the gateway send endpoint.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"required" example:"123456789@c.us"`
	Text           string `json:"text"            binding:"required"`
}

// AdminStats returns point-in-time aggregates.
func (h *Handlers) AdminStats(c *gin.Context) {
	stats, err := h.adminSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, AdminStatsResponse{
		Store:     stats,
		Directory: h.adminSvc.DirectoryStats(),
	})
}

// AdminListSessions returns a page of sessions by last activity.
func (h *Handlers) AdminListSessions(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.sessionSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Session{}
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, gin.H{
		"sessions": items,
		"pagination": Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// AdminCleanup runs the idle-session sweep on demand. An optional {hours}
// body sweeps sessions idle longer than that many hours instead of the
// configured default.
func (h *Handlers) AdminCleanup(c *gin.Context) {
	var req CleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil || req.Hours < 0 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "hours must be a non-negative integer")
			return
		}
	}

	removed, err := h.sessionSvc.CleanupIdle(c.Request.Context(), time.Duration(req.Hours)*time.Hour)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, CleanupResponse{SessionsRemoved: removed})
}

// GatewaySend delivers a text message to a doctor conversation.
func (h *Handlers) GatewaySend(c *gin.Context) {
	if h.messenger == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeGatewayFailed, "messaging gateway is not configured")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation_id and text are required")
		return
	}

	if err := h.messenger.SendText(c.Request.Context(), req.ConversationID, req.Text); err != nil {
		fail(c, http.StatusBadGateway, ErrCodeGatewayFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"sent": true})
}

// GatewayMessages reads recent messages from a doctor conversation.
func (h *Handlers) GatewayMessages(c *gin.Context) {
	if h.messenger == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeGatewayFailed, "messaging gateway is not configured")
		return
	}

	conversationID := strings.TrimSpace(c.Query("conversation_id"))
	if conversationID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation_id is required")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 20)

	msgs, err := h.messenger.ListMessages(c.Request.Context(), conversationID, limit)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeGatewayFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": msgs})
}
