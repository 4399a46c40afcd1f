package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	chatRecentKeyPrefix = "chat:conversation:"
	chatRecentKeySuffix = ":recent"
	chatRecentMaxLen    = 50
	chatRecentTTL       = 1 * time.Hour
)

func chatRecentKey(conversationID string) string {
	return chatRecentKeyPrefix + conversationID + chatRecentKeySuffix
}

// RecentCache keeps the newest messages of each conversation in a Redis list,
// newest at the head.
type RecentCache struct {
	rdb *redis.Client
	log logging.Logger
}

func NewRecentCache(rdb *redis.Client, log logging.Logger) *RecentCache {
	return &RecentCache{rdb: rdb, log: log}
}

// Push adds a message to the cache. LPUSH + LTRIM keeps the last 50.
func (c *RecentCache) Push(ctx context.Context, msg models.ChatMessage) {
	key := chatRecentKey(msg.ConversationID)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, chatRecentMaxLen-1)
	pipe.Expire(ctx, key, chatRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn(ctx, "chat cache push failed", "conversation_id", msg.ConversationID, "error", err)
	}
}

// Get returns the cached messages oldest-first; ok is false on a miss.
func (c *RecentCache) Get(ctx context.Context, conversationID string) ([]models.ChatMessage, bool) {
	raw, err := c.rdb.LRange(ctx, chatRecentKey(conversationID), 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m models.ChatMessage
		if json.Unmarshal([]byte(raw[i]), &m) != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// Warm stores msgs (oldest-first) so that the newest ends up at the head.
func (c *RecentCache) Warm(ctx context.Context, conversationID string, msgs []models.ChatMessage) {
	if len(msgs) == 0 {
		return
	}

	key := chatRecentKey(conversationID)
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	for i := len(msgs) - 1; i >= 0; i-- {
		data, err := json.Marshal(msgs[i])
		if err != nil {
			continue
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, 0, chatRecentMaxLen-1)
	pipe.Expire(ctx, key, chatRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn(ctx, "chat cache warm failed", "conversation_id", conversationID, "error", err)
	}
}

// LatestFrom trims an oldest-first slice to its newest limit entries.
func LatestFrom(msgs []models.ChatMessage, limit int64) ([]models.ChatMessage, bool) {
	if int64(len(msgs)) <= limit {
		return msgs, false
	}
	return msgs[int64(len(msgs))-limit:], true
}
