package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

// ChatHistoryResponse is returned when loading stored messages.
type ChatHistoryResponse struct {
	Success  bool                 `json:"success"`
	Messages []models.ChatMessage `json:"messages"`
	HasMore  bool                 `json:"has_more"`
}

// ChatHistory loads a page of messages for a conversation the caller is part of.
// Query params:
//
//	conversation_type  peer or group (required)
//	target_id          peer user id or group id (required)
//	before             optional RFC3339 timestamp for pagination
//	limit              optional, default 50
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := models.ConversationType(q.Get("conversation_type"))
	targetID := q.Get("target_id")
	if !kind.Valid() || targetID == "" {
		badRequest(w, "conversation_type and target_id are required")
		return
	}

	var limit int64
	if lStr := q.Get("limit"); lStr != "" {
		if parsed, err := strconv.ParseInt(lStr, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var before *time.Time
	if bStr := q.Get("before"); bStr != "" {
		t, err := time.Parse(time.RFC3339, bStr)
		if err != nil {
			badRequest(w, "before must be an RFC3339 timestamp")
			return
		}
		before = &t
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msgs, hasMore, err := h.chat.History(ctx, UserID(r.Context()), kind, targetID, before, limit)
	if err != nil {
		status, msg := chatFailure(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "history load failed", "target_id", targetID, "error", err)
		}
		writeJSON(w, status, map[string]interface{}{
			"success": false,
			"message": msg,
		})
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, ChatHistoryResponse{
		Success:  true,
		Messages: msgs,
		HasMore:  hasMore,
	})
}

// chatFailure maps messaging errors to a status and a user message.
func chatFailure(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest, "Message cannot be empty"
	case errors.Is(err, services.ErrMessageTooLong):
		return http.StatusBadRequest, "Message is too long"
	case errors.Is(err, services.ErrBadConversation):
		return http.StatusBadRequest, "Unknown conversation"
	case errors.Is(err, services.ErrNotGroupMember):
		return http.StatusForbidden, "You must be a member of this group"
	}
	if te, ok := services.AsTransportError(err); ok {
		return http.StatusBadGateway, te.Message
	}
	return http.StatusInternalServerError, "Failed to load messages"
}
