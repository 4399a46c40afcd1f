package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	// PresenceKeyPrefix is the Redis key prefix for connected users.
	PresenceKeyPrefix = "presence:"
	// PresenceDuration bounds how long a connect stays valid without a refresh.
	PresenceDuration = 24 * time.Hour
	// ConnectTokenDuration is the lifetime of the token used to open the socket.
	ConnectTokenDuration = 24 * time.Hour
)

// ConnectClaims are carried by the token a client presents to the realtime gateway.
type ConnectClaims struct {
	jwt.RegisteredClaims
	AppID       string `json:"app_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Presence is what the transport knows about a connected user.
type Presence struct {
	UserID      string `redis:"user_id"`
	DisplayName string `redis:"display_name"`
	AvatarURL   string `redis:"avatar_url"`
	ConnectedAt string `redis:"connected_at"`
}

// InviteError reports a member that could not be added to a new group.
type InviteError struct {
	UserID string `json:"user_id"`
	Code   int    `json:"code"`
}

// ChatTransport owns connections, groups and conversations. It must be
// initialized with the application credentials before any other call.
type ChatTransport struct {
	rdb *redis.Client
	db  *sql.DB
	now func() time.Time

	mu     sync.RWMutex
	appID  string
	secret []byte
}

func NewChatTransport(rdb *redis.Client, db *sql.DB) *ChatTransport {
	return &ChatTransport{rdb: rdb, db: db, now: time.Now}
}

// Initialize sets the application credentials. It is called once at startup.
func (t *ChatTransport) Initialize(appID, appSecret string) error {
	if strings.TrimSpace(appID) == "" || strings.TrimSpace(appSecret) == "" {
		return transportErr(CodeInvalidParameter, "app id and app secret are required", nil)
	}
	t.mu.Lock()
	t.appID = appID
	t.secret = []byte(appSecret)
	t.mu.Unlock()
	return nil
}

func (t *ChatTransport) credentials() (string, []byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.appID == "" {
		return "", nil, transportErr(CodeNotInitialized, "chat transport is not initialized", nil)
	}
	return t.appID, t.secret, nil
}

// Connect marks the user present under the given display identity and returns
// the token the client uses to open its realtime socket.
func (t *ChatTransport) Connect(ctx context.Context, userID, displayName, avatarURL string) (string, error) {
	appID, secret, err := t.credentials()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(displayName) == "" {
		return "", transportErr(CodeInvalidParameter, "user id and display name are required", nil)
	}

	now := t.now().UTC()
	key := PresenceKeyPrefix + userID
	pipe := t.rdb.TxPipeline()
	pipe.HSet(ctx, key, Presence{
		UserID:      userID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		ConnectedAt: now.Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, PresenceDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", transportErr(CodeServerError, "could not record presence", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ConnectClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ConnectTokenDuration)),
		},
		AppID:       appID,
		UserID:      userID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", transportErr(CodeServerError, "could not sign connect token", err)
	}
	return signed, nil
}

// Disconnect drops the user's presence, which revokes their connect tokens,
// and tells every hub to close the user's open sockets. Disconnecting twice is
// not an error.
func (t *ChatTransport) Disconnect(ctx context.Context, userID string) error {
	if _, _, err := t.credentials(); err != nil {
		return err
	}
	if err := t.rdb.Del(ctx, PresenceKeyPrefix+userID).Err(); err != nil {
		return transportErr(CodeServerError, "could not clear presence", err)
	}
	if err := t.rdb.Publish(ctx, sessionChannelPrefix+userID, "disconnect").Err(); err != nil {
		return transportErr(CodeServerError, "could not end realtime session", err)
	}
	return nil
}

// Presence returns the connect record of userID, or ok=false when absent.
func (t *ChatTransport) Presence(ctx context.Context, userID string) (*Presence, bool, error) {
	var p Presence
	res := t.rdb.HGetAll(ctx, PresenceKeyPrefix+userID)
	if err := res.Err(); err != nil {
		return nil, false, err
	}
	if len(res.Val()) == 0 {
		return nil, false, nil
	}
	if err := res.Scan(&p); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

// TouchPresence extends the presence of an active socket.
func (t *ChatTransport) TouchPresence(ctx context.Context, userID string) error {
	return t.rdb.Expire(ctx, PresenceKeyPrefix+userID, PresenceDuration).Err()
}

// ParseConnectToken validates a token issued by Connect. The token is only
// accepted while its user is still connected.
func (t *ChatTransport) ParseConnectToken(ctx context.Context, tokenString string) (*ConnectClaims, error) {
	appID, secret, err := t.credentials()
	if err != nil {
		return nil, err
	}
	claims := &ConnectClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, transportErr(CodeTokenInvalid, "connect token is invalid", err)
	}
	if !token.Valid || claims.AppID != appID || claims.UserID == "" {
		return nil, transportErr(CodeTokenInvalid, "connect token is invalid", nil)
	}

	n, err := t.rdb.Exists(ctx, PresenceKeyPrefix+claims.UserID).Result()
	if err != nil {
		return nil, transportErr(CodeServerError, "could not check presence", err)
	}
	if n == 0 {
		return nil, transportErr(CodeNotConnected, "user is not connected", nil)
	}
	return claims, nil
}

// CreateGroup creates group groupID owned by creatorID. Members that are not
// registered users are skipped and reported as invite errors; the group is
// still created with the rest.
func (t *ChatTransport) CreateGroup(ctx context.Context, creatorID, name, groupID string, memberIDs []string) (*models.Group, []InviteError, error) {
	if _, _, err := t.credentials(); err != nil {
		return nil, nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || groupID == "" || len(memberIDs) == 0 {
		return nil, nil, transportErr(CodeInvalidParameter, "group name, id and members are required", nil)
	}

	n, err := t.rdb.Exists(ctx, PresenceKeyPrefix+creatorID).Result()
	if err != nil {
		return nil, nil, transportErr(CodeServerError, "could not check presence", err)
	}
	if n == 0 {
		return nil, nil, transportErr(CodeNotConnected, "user is not connected", nil)
	}

	known, err := t.knownUsers(ctx, memberIDs)
	if err != nil {
		return nil, nil, transportErr(CodeServerError, "could not look up members", err)
	}

	var members []string
	var inviteErrs []InviteError
	for _, id := range memberIDs {
		if _, ok := known[id]; ok {
			members = append(members, id)
			continue
		}
		inviteErrs = append(inviteErrs, InviteError{UserID: id, Code: CodeUserNotFound})
	}

	group := &models.Group{
		ID:        groupID,
		Name:      name,
		MemberIDs: members,
		CreatedBy: creatorID,
		CreatedAt: t.now().UTC(),
	}
	if err := t.insertGroup(ctx, group); err != nil {
		return nil, nil, err
	}
	return group, inviteErrs, nil
}

func (t *ChatTransport) knownUsers(ctx context.Context, ids []string) (map[string]struct{}, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT id::text FROM users WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]struct{}, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = struct{}{}
	}
	return known, rows.Err()
}

func (t *ChatTransport) insertGroup(ctx context.Context, g *models.Group) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return transportErr(CodeServerError, "could not create group", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO chat_groups (id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, g.ID, g.Name, g.CreatedBy, g.CreatedAt)
	if err != nil {
		return transportErr(CodeServerError, "could not create group", err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return transportErr(CodeGroupExists, fmt.Sprintf("group %s already exists", g.ID), err)
	}

	for _, id := range g.MemberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_group_members (group_id, user_id, joined_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, g.ID, id, g.CreatedAt); err != nil {
			return transportErr(CodeServerError, "could not add group member", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return transportErr(CodeServerError, "could not create group", err)
	}
	return nil
}

// GroupMembers returns the member ids of groupID.
func (t *ChatTransport) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT user_id FROM chat_group_members WHERE group_id = $1 ORDER BY joined_at, user_id
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OpenConversation returns the route to a peer or group conversation.
func (t *ChatTransport) OpenConversation(targetID string, kind models.ConversationType) (models.Route, error) {
	if strings.TrimSpace(targetID) == "" || !kind.Valid() {
		return models.Route{}, transportErr(CodeInvalidParameter, "conversation target is invalid", nil)
	}
	return models.Route{
		Screen:           models.ScreenMessage,
		TargetID:         targetID,
		ConversationType: kind,
	}, nil
}

// AsTransportError unwraps the transport failure inside err, if any.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
