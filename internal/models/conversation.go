package models

import "time"

// ConversationType distinguishes one-to-one and multi-party conversations.
type ConversationType string

const (
	ConversationPeer  ConversationType = "peer"
	ConversationGroup ConversationType = "group"
)

// Valid reports whether t is a known conversation type.
func (t ConversationType) Valid() bool {
	return t == ConversationPeer || t == ConversationGroup
}

// Group is a multi-party conversation owned by the chat transport.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MemberIDs []string  `json:"member_ids"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Screen names the client view a Route points at.
type Screen string

const (
	ScreenLogin         Screen = "login"
	ScreenConversations Screen = "conversations"
	ScreenMessage       Screen = "message"
)

// Route tells the client where to go next. ClearHistory asks the client to drop
// every prior screen so back-navigation cannot return to them.
type Route struct {
	Screen           Screen           `json:"screen"`
	TargetID         string           `json:"target_id,omitempty"`
	ConversationType ConversationType `json:"conversation_type,omitempty"`
	ClearHistory     bool             `json:"clear_history,omitempty"`
}
