package flows

import (
	"context"

	"github.com/AnshRaj112/chatooz-backend/internal/models"
	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

// Credentials is the identity provider.
type Credentials interface {
	Register(ctx context.Context, email, password string) (*models.Identity, error)
	Authenticate(ctx context.Context, email, password string) (*models.Identity, error)
	Get(ctx context.Context, id string) (*models.Identity, error)
	SetDisplayName(ctx context.Context, id, name string) error
}

// Sessions maps client tokens to the current identity.
type Sessions interface {
	Create(ctx context.Context, userID string) (string, error)
	Validate(ctx context.Context, token string) (string, bool, error)
	Invalidate(ctx context.Context, token string) error
}

// Profiles is the profile directory.
type Profiles interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) ([]models.Profile, error)
	Put(ctx context.Context, p *models.Profile) error
	NewKey(ctx context.Context) (string, error)
}

// Media stores uploaded images.
type Media interface {
	Upload(ctx context.Context, image []byte, path string) (string, error)
}

// Transport is the chat transport.
type Transport interface {
	Connect(ctx context.Context, userID, displayName, avatarURL string) (string, error)
	Disconnect(ctx context.Context, userID string) error
	CreateGroup(ctx context.Context, creatorID, name, groupID string, memberIDs []string) (*models.Group, []services.InviteError, error)
	OpenConversation(targetID string, kind models.ConversationType) (models.Route, error)
}

// Verifier sends and confirms email verification links.
type Verifier interface {
	Send(ctx context.Context, identity *models.Identity) error
	Confirm(ctx context.Context, token string) (string, error)
}
