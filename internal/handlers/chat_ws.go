package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

const (
	chatReadLimit   = 64 * 1024
	chatIdleTimeout = 90 * time.Second
)

// ChatClientMessage is a frame sent by the client over the chat socket.
type ChatClientMessage struct {
	Type             string                  `json:"type"` // "message" or "ping"
	ConversationType models.ConversationType `json:"conversation_type,omitempty"`
	TargetID         string                  `json:"target_id,omitempty"`
	Text             string                  `json:"text,omitempty"`
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin admits native clients, which send no Origin, and the configured
// browser origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ChatWebSocket is the realtime gateway. It is authenticated by the connect
// token handed out when the chat session was established, sent either as
// "Authorization: Bearer <token>" or as the token query parameter.
func (h *Handler) ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		http.Error(w, "missing connect token", http.StatusUnauthorized)
		return
	}
	claims, err := h.gateway.ParseConnectToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid connect token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uc := h.hub.Register(claims.UserID, conn)
	defer h.hub.Unregister(uc)
	h.metrics.SocketOpened()
	defer h.metrics.SocketClosed()

	log := h.log.With("user_id", claims.UserID)
	log.Info(ctx, "chat socket opened")

	sender := services.Sender{ID: claims.UserID, Name: claims.DisplayName, AvatarURL: claims.AvatarURL}

	conn.SetReadLimit(chatReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(chatIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(chatIdleTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info(ctx, "chat socket closed")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(chatIdleTimeout))

		var msg ChatClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "message":
			h.handleChatMessage(ctx, uc, sender, msg)
		case "ping":
			if err := h.gateway.TouchPresence(ctx, claims.UserID); err != nil {
				log.Warn(ctx, "presence refresh failed", "error", err)
			}
			_ = uc.Send(services.ChatEvent{Type: "pong", Timestamp: time.Now().UTC()})
		}
	}
}

// handleChatMessage sends a message and acknowledges it to the sender.
func (h *Handler) handleChatMessage(ctx context.Context, uc *services.UserConnection, from services.Sender, msg ChatClientMessage) {
	saved, err := h.chat.Send(ctx, from, msg.ConversationType, strings.TrimSpace(msg.TargetID), msg.Text)
	if err != nil {
		status, text := chatFailure(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(ctx, "chat send failed", "user_id", from.ID, "error", err)
			text = "Failed to send message"
		}
		_ = uc.Send(services.ChatEvent{
			Type:             "error",
			ConversationType: msg.ConversationType,
			Error:            text,
			Timestamp:        time.Now().UTC(),
		})
		return
	}
	_ = uc.Send(services.ChatEvent{
		Type:             "message_ack",
		ConversationID:   saved.ConversationID,
		ConversationType: saved.ConversationType,
		Message:          saved,
		Timestamp:        time.Now().UTC(),
	})
}
