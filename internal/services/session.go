package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

// SessionStore keeps one active session token per identity in Redis. It is the
// "current identity" of a client between app launches.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: SessionDuration}
}

// Create issues a new token for userID. Any previous session of the same user
// is invalidated so the expiry restarts from this sign-in.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is empty")
	}
	if err := s.InvalidateUser(ctx, userID); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+token, userID, s.ttl)
	pipe.Set(ctx, UserSessionKeyPrefix+userID, token, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate returns the user id behind token. A missing or expired token is not
// an error: it reports ok=false.
func (s *SessionStore) Validate(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	userID, err := s.rdb.Get(ctx, SessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load session: %w", err)
	}
	return userID, true, nil
}

// Refresh extends the session by another full duration.
func (s *SessionStore) Refresh(ctx context.Context, token string) error {
	userID, ok, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("session not found")
	}
	pipe := s.rdb.TxPipeline()
	pipe.Expire(ctx, SessionKeyPrefix+token, s.ttl)
	pipe.Expire(ctx, UserSessionKeyPrefix+userID, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate removes a single session.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	userID, err := s.rdb.Get(ctx, SessionKeyPrefix+token).Result()
	if err == nil && userID != "" {
		s.rdb.Del(ctx, UserSessionKeyPrefix+userID)
	}
	return s.rdb.Del(ctx, SessionKeyPrefix+token).Err()
}

// InvalidateUser drops whatever session userID currently holds.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID string) error {
	token, err := s.rdb.Get(ctx, UserSessionKeyPrefix+userID).Result()
	if err == nil && token != "" {
		s.rdb.Del(ctx, SessionKeyPrefix+token)
	}
	return s.rdb.Del(ctx, UserSessionKeyPrefix+userID).Err()
}
