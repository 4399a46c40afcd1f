package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	VerificationKeyPrefix = "email_verify:"
	VerificationDuration  = 24 * time.Hour
)

var ErrVerificationToken = errors.New("verification link is invalid or has expired")

type emailMarker interface {
	MarkEmailVerified(ctx context.Context, id string) error
}

// Verifier issues single-use email verification links. Delivery is left to the
// log stream; no mail provider is configured.
type Verifier struct {
	rdb     *redis.Client
	users   emailMarker
	baseURL string
	log     logging.Logger
}

func NewVerifier(rdb *redis.Client, users emailMarker, baseURL string, log logging.Logger) *Verifier {
	return &Verifier{rdb: rdb, users: users, baseURL: baseURL, log: log}
}

// Send creates a token for identity and emits the verification link.
func (v *Verifier) Send(ctx context.Context, identity *models.Identity) error {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	token := hex.EncodeToString(buf)

	if err := v.rdb.Set(ctx, VerificationKeyPrefix+token, identity.ID, VerificationDuration).Err(); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	link := v.baseURL + "/api/auth/verify?token=" + url.QueryEscape(token)
	v.log.Info(ctx, "verification email queued", "user_id", identity.ID, "email", identity.Email, "link", link)
	return nil
}

// Confirm consumes token and marks the owning identity verified.
func (v *Verifier) Confirm(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrVerificationToken
	}
	userID, err := v.rdb.GetDel(ctx, VerificationKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrVerificationToken
	}
	if err != nil {
		return "", err
	}
	if err := v.users.MarkEmailVerified(ctx, userID); err != nil {
		return "", err
	}
	return userID, nil
}
