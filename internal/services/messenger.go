package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
)

// MaxMessageLength caps a single chat message, in runes.
const MaxMessageLength = 4000

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message is too long")
	ErrNotGroupMember  = errors.New("not a member of this group")
	ErrBadConversation = errors.New("conversation type or target is invalid")
)

// Messenger exchanges messages inside peer and group conversations.
type Messenger struct {
	transport *ChatTransport
	history   *ChatHistory
	cache     *RecentCache
	hub       *ChatHub
	log       logging.Logger
}

func NewMessenger(transport *ChatTransport, history *ChatHistory, cache *RecentCache, hub *ChatHub, log logging.Logger) *Messenger {
	return &Messenger{transport: transport, history: history, cache: cache, hub: hub, log: log}
}

// Sender is the connected author of a message.
type Sender struct {
	ID        string
	Name      string
	AvatarURL string
}

// Send stores a message and delivers it to every participant.
func (m *Messenger) Send(ctx context.Context, from Sender, kind models.ConversationType, targetID, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	conversationID, recipients, err := m.participants(ctx, from.ID, kind, targetID)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ConversationID:   conversationID,
		ConversationType: kind,
		SenderID:         from.ID,
		SenderName:       from.Name,
		SenderAvatar:     from.AvatarURL,
		Text:             text,
	}
	if err := m.history.Save(ctx, msg); err != nil {
		return nil, err
	}
	m.cache.Push(ctx, *msg)

	event := ChatEvent{
		Type:             "message",
		ConversationID:   conversationID,
		ConversationType: kind,
		Message:          msg,
		Timestamp:        msg.CreatedAt,
	}
	if err := m.hub.Publish(ctx, event, recipients); err != nil {
		// Stored already; deliver to local sockets at least.
		m.log.Warn(ctx, "chat publish failed, delivering locally", "conversation_id", conversationID, "error", err)
		m.hub.FanOut(ctx, event, recipients)
	}
	return msg, nil
}

// History returns messages of a conversation the caller takes part in. The
// initial page (before == nil) is served from the recent cache when possible.
func (m *Messenger) History(ctx context.Context, userID string, kind models.ConversationType, targetID string, before *time.Time, limit int64) ([]models.ChatMessage, bool, error) {
	conversationID, _, err := m.participants(ctx, userID, kind, targetID)
	if err != nil {
		return nil, false, err
	}
	limit = clampHistoryLimit(limit)

	if before == nil && limit <= chatRecentMaxLen {
		if cached, ok := m.cache.Get(ctx, conversationID); ok {
			out, trimmed := LatestFrom(cached, limit)
			return out, trimmed || int64(len(cached)) >= chatRecentMaxLen, nil
		}
	}

	msgs, hasMore, err := m.history.Load(ctx, conversationID, before, limit)
	if err != nil {
		return nil, false, err
	}
	if before == nil && len(msgs) > 0 {
		m.cache.Warm(ctx, conversationID, msgs)
	}
	return msgs, hasMore, nil
}

func (m *Messenger) participants(ctx context.Context, userID string, kind models.ConversationType, targetID string) (string, []string, error) {
	if strings.TrimSpace(targetID) == "" {
		return "", nil, ErrBadConversation
	}
	switch kind {
	case models.ConversationPeer:
		if targetID == userID {
			return "", nil, ErrBadConversation
		}
		return models.PeerConversationID(userID, targetID), []string{userID, targetID}, nil
	case models.ConversationGroup:
		members, err := m.transport.GroupMembers(ctx, targetID)
		if err != nil {
			return "", nil, err
		}
		for _, id := range members {
			if id == userID {
				return targetID, members, nil
			}
		}
		return "", nil, ErrNotGroupMember
	default:
		return "", nil, ErrBadConversation
	}
}
