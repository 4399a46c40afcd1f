package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	chatChannelPrefix  = "chat:conversation:"
	chatChannelPattern = chatChannelPrefix + "*"

	// sessionChannelPrefix carries end-of-session signals, suffixed by user id.
	sessionChannelPrefix  = "chat:session:"
	sessionChannelPattern = sessionChannelPrefix + "*"
)

// ChatEvent represents the payload broadcast over Redis and WebSocket.
type ChatEvent struct {
	Type             string                  `json:"type"`
	ConversationID   string                  `json:"conversation_id,omitempty"`
	ConversationType models.ConversationType `json:"conversation_type,omitempty"`
	Message          *models.ChatMessage     `json:"message,omitempty"`
	Error            string                  `json:"error,omitempty"`
	Timestamp        time.Time               `json:"timestamp,omitempty"`
}

// chatEnvelope is what travels on Redis: the event plus who should receive it.
type chatEnvelope struct {
	Event      ChatEvent `json:"event"`
	Recipients []string  `json:"recipients"`
}

// ChatConn is the minimal interface our WebSocket implementation must satisfy.
type ChatConn interface {
	WriteJSON(v interface{}) error
	ReadJSON(dest interface{}) error
	Close() error
}

// UserConnection serializes writes to one user's socket.
type UserConnection struct {
	UserID string
	Conn   ChatConn
	mu     sync.Mutex
}

func (uc *UserConnection) Send(v interface{}) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.Conn.WriteJSON(v)
}

// ChatHub is the per-process registry of connected users. Events reach every
// process through a Redis pattern subscription and are delivered locally.
type ChatHub struct {
	rdb *redis.Client
	log logging.Logger

	mu          sync.RWMutex
	connections map[string]*UserConnection
	started     sync.Once
}

func NewChatHub(rdb *redis.Client, log logging.Logger) *ChatHub {
	return &ChatHub{
		rdb:         rdb,
		log:         log,
		connections: make(map[string]*UserConnection),
	}
}

// Register registers or replaces a user's connection.
func (h *ChatHub) Register(userID string, conn ChatConn) *UserConnection {
	uc := &UserConnection{UserID: userID, Conn: conn}

	h.mu.Lock()
	if old, ok := h.connections[userID]; ok {
		_ = old.Conn.Close()
	}
	h.connections[userID] = uc
	h.mu.Unlock()

	return uc
}

// Unregister removes uc if it is still the user's current connection.
func (h *ChatHub) Unregister(uc *UserConnection) {
	h.mu.Lock()
	if cur, ok := h.connections[uc.UserID]; ok && cur == uc {
		delete(h.connections, uc.UserID)
	}
	h.mu.Unlock()
}

// Drop closes and forgets userID's local connection, if any.
func (h *ChatHub) Drop(userID string) {
	h.mu.Lock()
	uc, ok := h.connections[userID]
	if ok {
		delete(h.connections, userID)
	}
	h.mu.Unlock()

	if ok {
		_ = uc.Conn.Close()
	}
}

// Connected reports whether userID has a socket on this process.
func (h *ChatHub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[userID]
	return ok
}

// FanOut sends an event to the local connections of recipients.
func (h *ChatHub) FanOut(ctx context.Context, event ChatEvent, recipients []string) {
	h.mu.RLock()
	targets := make([]*UserConnection, 0, len(recipients))
	for _, id := range recipients {
		if uc, ok := h.connections[id]; ok {
			targets = append(targets, uc)
		}
	}
	h.mu.RUnlock()

	for _, uc := range targets {
		// Non-blocking best-effort send.
		go func(uc *UserConnection) {
			if err := uc.Send(event); err != nil {
				h.log.Warn(ctx, "error writing chat event to websocket", "user_id", uc.UserID, "error", err)
			}
		}(uc)
	}
}

// Publish broadcasts event to recipients on every process.
func (h *ChatHub) Publish(ctx context.Context, event ChatEvent, recipients []string) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(chatEnvelope{Event: event, Recipients: recipients})
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, chatChannelPrefix+event.ConversationID, data).Err()
}

// Start launches the shared Redis listener once per hub.
func (h *ChatHub) Start(ctx context.Context) {
	h.started.Do(func() {
		go h.run(ctx)
	})
}

func (h *ChatHub) run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := h.listen(ctx, &backoff)
		if ctx.Err() != nil {
			return
		}
		h.log.Warn(ctx, "chat subscriber error", "error", err, "retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (h *ChatHub) listen(ctx context.Context, backoff *time.Duration) error {
	pubsub := h.rdb.PSubscribe(ctx, chatChannelPattern, sessionChannelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.log.Info(ctx, "chat subscriber started", "pattern", chatChannelPattern)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		*backoff = time.Second

		if msg.Pattern == sessionChannelPattern {
			userID := strings.TrimPrefix(msg.Channel, sessionChannelPrefix)
			h.Drop(userID)
			h.log.Info(ctx, "chat session ended", "user_id", userID)
			continue
		}

		var env chatEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.log.Warn(ctx, "failed to unmarshal chat event", "error", err)
			continue
		}
		h.FanOut(ctx, env.Event, env.Recipients)
	}
}
