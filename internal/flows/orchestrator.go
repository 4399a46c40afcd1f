// Package flows implements the user-facing flows of the chat service: session
// establishment, registration, sign-in, peer lookup and group formation.
package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/chatooz-backend/internal/config"
	"github.com/AnshRaj112/chatooz-backend/internal/logging"
	"github.com/AnshRaj112/chatooz-backend/internal/metrics"
	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

// FallbackDisplayName is used when neither a profile nor the identity has a name.
const FallbackDisplayName = "User"

type Deps struct {
	Credentials Credentials
	Sessions    Sessions
	Profiles    Profiles
	Media       Media // nil when no object storage is configured
	Transport   Transport
	Verifier    Verifier // nil disables email verification
	Logger      logging.Logger
	Metrics     *metrics.Metrics

	DefaultAvatarURL string
}

type Orchestrator struct {
	creds     Credentials
	sessions  Sessions
	profiles  Profiles
	media     Media
	transport Transport
	verifier  Verifier
	log       logging.Logger
	metrics   *metrics.Metrics

	defaultAvatar string
	now           func() time.Time
	background    sync.WaitGroup
}

func New(d Deps) *Orchestrator {
	avatar := d.DefaultAvatarURL
	if avatar == "" {
		avatar = config.DefaultAvatarURL
	}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Orchestrator{
		creds:         d.Credentials,
		sessions:      d.Sessions,
		profiles:      d.Profiles,
		media:         d.Media,
		transport:     d.Transport,
		verifier:      d.Verifier,
		log:           log,
		metrics:       d.Metrics,
		defaultAvatar: avatar,
		now:           time.Now,
	}
}

// Wait blocks until background work started by flows has finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// SessionResult is the outcome of connecting an identity to the chat transport.
type SessionResult struct {
	UserID       string       `json:"user_id"`
	DisplayName  string       `json:"display_name"`
	AvatarURL    string       `json:"avatar_url"`
	ConnectToken string       `json:"connect_token,omitempty"`
	Route        models.Route `json:"route"`
}

// EstablishSession connects identityID to the chat transport under the name
// and avatar from its profile. A missing or unreadable profile falls back to
// fallbackName and the default avatar. A transport failure is returned as a
// KindTransport error and no route is produced.
func (o *Orchestrator) EstablishSession(ctx context.Context, identityID, fallbackName string) (*SessionResult, error) {
	if strings.TrimSpace(identityID) == "" {
		return nil, validation("identity", "Missing user id")
	}
	if strings.TrimSpace(fallbackName) == "" {
		fallbackName = FallbackDisplayName
	}

	log := o.log.With("flow", "establish_session", "user_id", identityID)
	name, avatar := o.displayIdentity(ctx, log, identityID, fallbackName)

	log.Info(ctx, "connecting to chat", "display_name", name)
	token, err := o.transport.Connect(ctx, identityID, name, avatar)
	if err != nil {
		fe := transportFailure("Chat connection failed", err)
		log.Error(ctx, "chat connect failed", "code", fe.Code, "error", err)
		o.metrics.Flow("establish_session", "transport_error")
		return nil, fe
	}

	o.metrics.Flow("establish_session", "ok")
	log.Info(ctx, "chat connected")
	return &SessionResult{
		UserID:       identityID,
		DisplayName:  name,
		AvatarURL:    avatar,
		ConnectToken: token,
		Route:        models.Route{Screen: models.ScreenConversations, ClearHistory: true},
	}, nil
}

func (o *Orchestrator) displayIdentity(ctx context.Context, log logging.Logger, id, fallbackName string) (string, string) {
	p, err := o.profiles.Get(ctx, id)
	switch {
	case err == nil && p != nil:
		name, avatar := p.DisplayName, p.AvatarURL
		if strings.TrimSpace(name) == "" {
			name = fallbackName
		}
		if strings.TrimSpace(avatar) == "" {
			avatar = o.defaultAvatar
		}
		return name, avatar
	case err == nil, errors.Is(err, services.ErrProfileNotFound):
		log.Info(ctx, "no profile record, using fallback identity")
	default:
		log.Warn(ctx, "profile read failed, using fallback identity", "error", err)
	}
	return fallbackName, o.defaultAvatar
}
