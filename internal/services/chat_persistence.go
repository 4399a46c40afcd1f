package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessagesCollection stores chat history, one document per message.
const MessagesCollection = "chat_messages"

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type ChatHistory struct {
	col *mongo.Collection
	now func() time.Time
}

func NewChatHistory(col *mongo.Collection) *ChatHistory {
	return &ChatHistory{col: col, now: time.Now}
}

// EnsureIndexes configures indexes for the chat_messages collection.
// Called on startup from main after Mongo has connected.
func (h *ChatHistory) EnsureIndexes(ctx context.Context) error {
	// Compound index on (conversation_id, created_at) to support efficient pagination.
	_, err := h.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("idx_conversation_created"),
	})
	return err
}

// Save persists msg and fills in its id, timestamp and status.
func (h *ChatHistory) Save(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = h.now().UTC()
	}
	if msg.Status == "" {
		msg.Status = models.MessageStatusSent
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := h.col.InsertOne(ctx, msg)
	return err
}

// Load returns paginated history for a conversation, oldest first.
// Pagination is based on created_at + limit (newest-first scrolling).
func (h *ChatHistory) Load(ctx context.Context, conversationID string, before *time.Time, limit int64) ([]models.ChatMessage, bool, error) {
	limit = clampHistoryLimit(limit)

	filter := bson.M{"conversation_id": conversationID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := h.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var msgs []models.ChatMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(msgs)) > limit
	if hasMore {
		msgs = msgs[:len(msgs)-1]
	}

	// Reverse to oldest-first for the UI.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, hasMore, nil
}

func clampHistoryLimit(limit int64) int64 {
	if limit <= 0 || limit > maxHistoryLimit {
		return defaultHistoryLimit
	}
	return limit
}
