package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessageStatus represents the delivery status of a message.
type ChatMessageStatus string

const (
	MessageStatusSent      ChatMessageStatus = "sent"
	MessageStatusDelivered ChatMessageStatus = "delivered"
)

// ChatMessage is stored in MongoDB, one document per message.
// ConversationID is the group id, or the peer key built by PeerConversationID.
type ChatMessage struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID   string             `bson:"conversation_id" json:"conversation_id"`
	ConversationType ConversationType   `bson:"conversation_type" json:"conversation_type"`
	SenderID         string             `bson:"sender_id" json:"sender_id"`
	SenderName       string             `bson:"sender_name" json:"sender_name"`
	SenderAvatar     string             `bson:"sender_avatar,omitempty" json:"sender_avatar,omitempty"`
	Text             string             `bson:"text" json:"text"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	Status           ChatMessageStatus  `bson:"status" json:"status"`
}

// PeerConversationID returns the order-independent key for a one-to-one chat.
func PeerConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "peer:" + a + ":" + b
}
